// Package queue implements the in-memory message queues that back direct
// endpoints.
//
// A Queue is a FIFO mailbox per logical channel name. Retrieval is
// selector-filtered and timeout-bounded: each attempt scans the buffer from
// the head and removes only the first accepted message, leaving everything
// else in place and in order. Attempts repeat every polling interval until
// the timeout elapses, so the worst-case latency of a receive is the timeout
// plus one polling interval.
//
// A missing message is reported as nil, never as an error. Turning that into
// a timeout failure is up to the caller.
package queue
