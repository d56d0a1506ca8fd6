// Package fanout queries every mirror of a resource concurrently and merges
// the per-host results.
//
// Each mirror is one leg: GET, read, decode. A leg that fails is recorded as
// a *HostError tagged with the stage that failed and never aborts its
// siblings. Fetch returns only after every leg has settled, so the latency
// of a call is that of the slowest mirror.
//
//	f := fanout.New(httpclient.New(httpclient.WithConfig(httpclient.MirrorConfig())))
//	desc := endpoint.New(sims.DefaultHosts(), "vehicles")
//
//	out := fanout.Fetch[sims.Vehicle](ctx, f, desc, nil)
//	if out.Failed() {
//	    return out.Err()
//	}
//	if out.Degraded() {
//	    log.Warn().Strs("hosts", out.Hosts()).Msg("partial data")
//	}
//
// Items and Errors are both in host dispatch order, independent of which
// mirror answered first.
package fanout
