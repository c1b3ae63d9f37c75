// Package ragpack is a Go client for the ragpack context service.
//
// The service retrieves passages relevant to a conversation, checks that the
// latest question is within scope of what was found and packs the evidence into
// a token-bounded context block.
//
//	client, _ := ragpack.New("http://localhost:8080", ragpack.WithAPIKey(key))
//	res, err := client.BuildContext(ctx, ragpack.Turn{
//	    Messages: []ragpack.Message{ragpack.User("how do I rotate the keys?")},
//	    Scope:    &ragpack.Scope{Language: "en"},
//	})
//	if err != nil { ... }
//	if res.OutOfScope() { ... }
//	reply, _ := llm.Complete(ctx, res.Messages)
//	_ = client.Remember(ctx, conversation, []string{"prefers the CLI"})
package ragpack
