package agent

import (
	"context"
	"sort"

	"github.com/soyeahso/ochre/internal/llm"
)

// StreamResult is the outcome of a single streamed model response.
type StreamResult struct {
	Text         string
	ToolCalls    []llm.ToolCall
	FinishReason string
	Usage        *llm.Usage
	Cancelled    bool
}

// toolCallSlot accumulates one tool call across fragmented deltas.
type toolCallSlot struct {
	id   string
	name string
	args []byte
}

// streamOnce drives one streamed completion to its end, forwarding text
// deltas to onDelta as they arrive and assembling fragmented tool calls.
//
// Tool call fragments are keyed by their positional index. The id and
// function name are set by the first fragment that carries them; argument
// fragments are concatenated in arrival order. Fragments without an index
// are dropped.
//
// Cancellation is observed between frames and while waiting for the next
// one, so a quiet upstream cannot stall a cancel. A cancelled stream
// returns the text accumulated so far with Cancelled set and no error.
func streamOnce(ctx context.Context, client llm.Client, req llm.ChatRequest, onDelta func(string), cancel *CancelToken) (StreamResult, error) {
	var res StreamResult

	frames, err := client.Stream(ctx, req)
	if err != nil {
		return res, err
	}

	var text []byte
	slots := map[int]*toolCallSlot{}

recv:
	for {
		// Checked first so a token fired during frame handling is seen
		// before the next frame is consumed.
		if cancel.Cancelled() {
			res.Cancelled = true
			break
		}

		var frame llm.Frame
		select {
		case <-cancel.Done():
			res.Cancelled = true
			break recv
		case f, open := <-frames:
			if !open {
				break recv
			}
			frame = f
		}

		if frame.Err != nil {
			return res, frame.Err
		}
		if frame.Usage != nil {
			u := *frame.Usage
			res.Usage = &u
		}
		if len(frame.Choices) == 0 {
			continue
		}

		choice := frame.Choices[0]
		if choice.FinishReason != "" {
			res.FinishReason = choice.FinishReason
		}

		if choice.Delta.Content != "" {
			text = append(text, choice.Delta.Content...)
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			if tc.Index == nil {
				continue
			}
			slot, ok := slots[*tc.Index]
			if !ok {
				slot = &toolCallSlot{}
				slots[*tc.Index] = slot
			}
			if tc.ID != "" {
				slot.id = tc.ID
			}
			if tc.Function.Name != "" {
				slot.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				slot.args = append(slot.args, tc.Function.Arguments...)
			}
		}
	}

	if res.Cancelled {
		// Unblock the producer. It closes the channel once its context
		// aborts or the response ends.
		go func() {
			for range frames {
			}
		}()
	}

	res.Text = string(text)
	res.ToolCalls = assembleToolCalls(slots)
	return res, nil
}

// assembleToolCalls orders accumulated slots by index and converts them
// to completed tool calls.
func assembleToolCalls(slots map[int]*toolCallSlot) []llm.ToolCall {
	if len(slots) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(slots))
	for i := range slots {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		slot := slots[i]
		calls = append(calls, llm.ToolCall{
			ID:   slot.id,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      slot.name,
				Arguments: string(slot.args),
			},
		})
	}
	return calls
}
