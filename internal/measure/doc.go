// Package measure implements the data-acquisition control loop: drive a
// set of settables through a domain of setpoints, read a set of
// gettables at each one, and grow a labeled dataset row by row.
//
// Three execution modes sit behind one supervisor: batched (blocks
// sized to what every participant supports), iterative (point by
// point), and adaptive (the next point chosen by an external optimizer
// or learner). Runs are interruptible at two severities; every run,
// however it ends, yields a dataset holding exactly the rows that
// completed, persisted through the configured sink.
package measure
