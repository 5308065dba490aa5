// Package recipe reads build recipes and checks the start-command
// contract they establish: the exposed port, the server process, and
// its tuning flags. The checks catch the class of defect that a build
// succeeds on and a container start dies on, most notably a misspelled
// executable name.
package recipe
