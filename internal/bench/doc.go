// Package bench runs named encode jobs on a fixed set of workers.
//
// Each worker owns one encoder.Encoder and resets it between runs, so a
// codec instance is never shared between goroutines. A job may repeat; the
// reports of its latest execution are kept in memory until it runs again.
//
//	runner := bench.NewRunner(&bench.Options{
//	    Registry: soft.NewRegistry(),
//	    Jobs:     store.Get,
//	    Workers:  2,
//	})
//	defer runner.Close()
//	runner.Submit("raw-720p")
//	runner.Wait()
package bench
