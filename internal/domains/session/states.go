package session

import (
	"context"

	"github.com/looplab/fsm"
)

type State string

const (
	IDLE                  State = "idle"
	CONNECTING            State = "connecting"
	CAPTURING             State = "capturing"
	AWAITING_CONFIRMATION State = "awaitingConfirmation"
	PROCESSING            State = "processing"
	SPEAKING              State = "speaking"
)

type Event string

const (
	CONNECT         Event = "connect"         // idle -> connecting (live)
	OPENED          Event = "opened"          // connecting -> capturing
	LISTEN          Event = "listen"          // idle -> capturing (turn based)
	UTTERANCE_ENDED Event = "utterance_ended" // capturing -> awaitingConfirmation
	CONFIRM         Event = "confirm"         // awaitingConfirmation -> processing
	SEND            Event = "send"            // idle -> processing (text, retry, topic)
	REPLY           Event = "reply"           // processing -> speaking
	SPEAK           Event = "speak"           // capturing -> speaking (live audio)
	RESUME          Event = "resume"          // speaking -> capturing (live)
	FINISH          Event = "finish"          // processing/speaking -> idle
	STOP            Event = "stop"            // any non-idle -> idle
)

var nonIdle = []string{
	string(CONNECTING),
	string(CAPTURING),
	string(AWAITING_CONFIRMATION),
	string(PROCESSING),
	string(SPEAKING),
}

func newMachine(onEnter func(from, to State)) *fsm.FSM {
	return fsm.NewFSM(
		string(IDLE),
		fsm.Events{
			{Name: string(CONNECT), Src: []string{string(IDLE)}, Dst: string(CONNECTING)},
			{Name: string(OPENED), Src: []string{string(CONNECTING)}, Dst: string(CAPTURING)},
			{Name: string(LISTEN), Src: []string{string(IDLE)}, Dst: string(CAPTURING)},
			{Name: string(UTTERANCE_ENDED), Src: []string{string(CAPTURING)}, Dst: string(AWAITING_CONFIRMATION)},
			{Name: string(CONFIRM), Src: []string{string(AWAITING_CONFIRMATION)}, Dst: string(PROCESSING)},
			{Name: string(SEND), Src: []string{string(IDLE)}, Dst: string(PROCESSING)},
			{Name: string(REPLY), Src: []string{string(PROCESSING)}, Dst: string(SPEAKING)},
			{Name: string(SPEAK), Src: []string{string(CAPTURING)}, Dst: string(SPEAKING)},
			{Name: string(RESUME), Src: []string{string(SPEAKING)}, Dst: string(CAPTURING)},
			{Name: string(FINISH), Src: []string{string(PROCESSING), string(SPEAKING)}, Dst: string(IDLE)},
			{Name: string(STOP), Src: nonIdle, Dst: string(IDLE)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(State(e.Src), State(e.Dst))
			},
		},
	)
}
