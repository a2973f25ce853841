// Package async provides background execution primitives.
//
// Queue is a bounded single-consumer buffer used for work that must never
// slow down a request, such as writing the audit trail. Producers call
// Offer, which drops the item instead of blocking when the buffer is full.
//
//	q := async.NewQueue("audit writer", 1024, 5*time.Second, handle, logger)
//	if !q.Offer(entry) {
//	    dropped.Inc()
//	}
//	defer q.Close(5 * time.Second)
//
// The worker recovers from panics in the handler and logs handler errors.
package async
