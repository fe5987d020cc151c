/*
Package log constructs the zerolog loggers threaded through the capability
packages. Loggers are built explicitly per component and passed by value;
the package holds no global state.
*/
package log
