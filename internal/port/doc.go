// Package port implements host port scanning and the pre-deployment
// port check for the stackdock CLI.
//
// Stacks declare fixed host ports, so nothing is ever remapped
// automatically; the Scanner probes each published port before a deploy
// and reports conflicts together with a nearby free port the descriptor
// could use instead. Availability is determined by actually binding via
// net.Listen / net.ListenPacket, the same address space Docker
// publishes on.
package port
