// Package resdex embeds the resource discovery and matching engine in a Go program.
//
// The client reads database connections, API definitions, knowledge snippets and
// tool definitions from the systems-of-record database, keeps a vector index of
// them in Redis and ranks them against free-text requests.
//
//	client, _ := resdex.New(ctx,
//	    resdex.WithRedis("localhost:6379", ""),
//	    resdex.WithSources("postgres", dsn),
//	    resdex.WithEmbedder(myEmbedder),
//	    resdex.WithVectorDimensions(1536),
//	)
//	defer client.Close()
//
//	_, _ = client.Sync(ctx)
//	results, _ := client.Match(ctx, "monthly revenue by region",
//	    resdex.TopK(3), resdex.OfTypes(resdex.TypeDatabase))
//	_ = client.RecordOutcome(ctx, resdex.Outcome{ResourceID: results[0].ID, Selected: true, Succeeded: true})
package resdex
