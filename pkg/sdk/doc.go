// Package flagdex embeds the flagged-entity index into a host application.
//
// Entities are hashes in Valkey or Redis (post:{id} by default). The client
// keeps a global sorted index of flagged entities and one index per parent
// (topic), ordered by the time the flag was set.
//
//	client, _ := flagdex.New(ctx,
//	    flagdex.WithValkey("localhost:6379", ""),
//	    flagdex.WithModerators("1"),
//	)
//	defer client.Close()
//
//	out, err := client.Flags().Mark(ctx, "42", "7")
//	page, _ := client.Flags().List(ctx, flagdex.ListOptions{Parent: "3", Limit: 20})
//
// Committed changes are broadcast to room channels and passed to hooks
// registered with Client.OnChange.
package flagdex
