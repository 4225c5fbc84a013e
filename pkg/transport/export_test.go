package transport

// Reset clears the process-wide registry between tests.
var Reset = reset
