// Package staging implements read-only access to the staging tree.
//
// The FileRepository resolves artifacts under <fetch_root>/<fsid>, offers a
// non-blocking existence check and a blocking Await that acts as the
// synchronization barrier between the producing node and this consumer.
package staging
