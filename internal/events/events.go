/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

// Fanout emits every event to all of its sinks in order
type Fanout []raffle.EventSink

func (f Fanout) Emit(e raffle.Event) {
	for _, sink := range f {
		sink.Emit(e)
	}
}

// Log writes events to a logger for off-process observers tailing the logs
type Log struct {
	Logger raffle.Logger
}

func (l Log) Emit(e raffle.Event) {
	switch e.Kind {
	case raffle.RoundStarted:
		l.Logger.Infof("EVENT %s request=%s", e.Kind, e.RequestID)
	case raffle.WinnersSelected:
		l.Logger.Infof("EVENT %s request=%s winners=%v", e.Kind, e.RequestID, e.Winners)
	default:
		l.Logger.Warnf("EVENT unknown kind %q request=%s", e.Kind, e.RequestID)
	}
}
