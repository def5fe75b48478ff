// Package buckettest provides a conformance test suite for objectstore.Bucket
// implementations.
//
// Every bucket backend (memory, badger, s3) should pass these tests.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    buckettest.RunConformanceSuite(t, func(t *testing.T) objectstore.Bucket {
//	        return memory.New()
//	    })
//	}
//
// The factory receives *testing.T so backends can use t.TempDir() and
// t.Cleanup() for teardown.
package buckettest
