package main

import (
	"context"
	"fmt"

	"github.com/Crestview-Labs/metagen-sub001/internal/agent"
)

// echoGenerator is a minimal agent.Generator for local testing and the
// chat/serve demos: it never requests a tool call and replies with an
// acknowledgement of the last user message. A real deployment supplies
// its own agent.Generator backed by a hosted model client; this repo's
// loop, tool flow, and approval machinery are exercised identically
// either way, since they only depend on the Generator interface.
type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, req *agent.GenerateRequest) (<-chan *agent.GenerateChunk, error) {
	ch := make(chan *agent.GenerateChunk, 2)
	last := lastUserContent(req.Messages)
	text := fmt.Sprintf("You said: %s", last)

	go func() {
		defer close(ch)
		select {
		case ch <- &agent.GenerateChunk{Text: text}:
		case <-ctx.Done():
			return
		}
		select {
		case ch <- &agent.GenerateChunk{Done: true, InputTokens: len(last), OutputTokens: len(text)}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

func lastUserContent(messages []agent.GenerateMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
