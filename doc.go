// Package splitledger is an offline-first client engine for shared expense
// groups. It keeps a layered local copy of a group's accounts and
// transactions (confirmed server state, offline-accepted edits, open
// drafts), reconciles it with the server over REST and websocket push, and
// derives balances and settlement plans locally.
//
// A typical session:
//
//	c := splitledger.New("https://api.example.com", "wss://api.example.com/ws", token)
//	if err := c.Start(ctx); err != nil { ... }
//	defer c.Close(ctx)
//
//	g, err := c.Group(ctx, groupID)
//	if err := g.Pull(ctx); err != nil { ... }
//
//	a := g.NewAccount(entity.AccountPersonal)
//	_ = g.UpdateAccount(a.ID, entity.AccountPatch{Name: &name})
//	if err := g.SaveAccount(ctx, a.ID); err != nil { ... }
//
//	balances, _ := g.Balances()
//	plan, _ := g.SettlementPlan()
//
// Edits are drafts until saved: they are visible locally, can be discarded
// without a trace, and never reach the server half-finished. Saving a draft
// that references nothing but server-known entities pushes it immediately;
// with WithOfflineQueue the engine instead queues edits while disconnected
// and replays them on Flush.
package splitledger
