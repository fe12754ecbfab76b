package engine

import "github.com/vsariola/hostcore"

// Process renders one cycle of frames frames. in holds the dry input
// channels and out receives the output channels; both must have at least
// frames samples per channel. It is called by the audio thread and never
// blocks, unless the engine is offline.
//
// The events of the ports are walked in time order. Unless the plugin needs
// fixed buffers, the cycle is split at every event time, so the plugin sees
// each event at the first frame of a sub-block and the sub-blocks cover the
// cycle in increasing order.
func (e *Engine) Process(in, out [][]float32, frames int) {
	if frames <= 0 {
		return
	}
	if !e.active.Load() || !e.lockMaster() {
		zeroBuffers(out, 0, frames)
		return
	}
	defer e.master.Unlock()
	e.stats.cycles.Add(1)
	if frames > e.bufferSize {
		zeroBuffers(out, 0, frames)
		e.notifier.Postpone(Notification{Kind: NotifyOversizeCycle, Frame: frames, Index: e.bufferSize})
		e.notifier.TrySplice()
		return
	}
	e.queue = e.queue[:0]
	e.rtCalls = e.rtCalls[:0]
	e.allNotesOffSent = false
	e.queueFullReported = false
	e.nextBank = e.currentBank()
	if e.needsReset.Swap(false) {
		e.queueReset()
		e.latency.Clear()
	}
	e.notes.tryDrain(e.queueExternalNote)
	sampleAccurate := e.sampleAccurate()
	e.merger.Begin()
	timeOffset := 0
	for {
		ev, port, ok := e.merger.Next()
		if !ok {
			break
		}
		t := ev.Time
		if t >= frames {
			e.stats.droppedEvents.Add(1)
			e.notifier.Postpone(Notification{Kind: NotifyEventSkipped, Frame: t, Index: frames})
			continue
		}
		if t < timeOffset {
			e.stats.timingErrors.Add(1)
			e.notifier.Postpone(Notification{Kind: NotifyTimingError, Frame: t, Index: timeOffset})
			t = timeOffset
		}
		if sampleAccurate && t > timeOffset {
			if e.processSingle(in, out, t-timeOffset, timeOffset) {
				timeOffset = t
				e.queue = e.queue[:0]
				e.nextBank = e.currentBank()
			}
		}
		ev.Time = t
		e.dispatch(ev, port, t-timeOffset)
	}
	if frames > timeOffset {
		e.processSingle(in, out, frames-timeOffset, timeOffset)
	}
	e.notifier.TrySplice()
}

func (e *Engine) lockMaster() bool {
	if e.offline.Load() {
		e.master.Lock()
		return true
	}
	return e.master.TryLock()
}

// processSingle renders frames frames starting at offset. When the guard is
// taken by the control thread, the range is silenced and false is returned;
// the queued events then stay for the next attempt.
func (e *Engine) processSingle(in, out [][]float32, frames, offset int) bool {
	if e.offline.Load() {
		e.guard.Lock()
	} else if !e.guard.TryLock() {
		zeroBuffers(out, offset, frames)
		return false
	}
	e.stats.subBlocks.Add(1)
	e.applyRTCalls()
	for i, b := range e.ins {
		b = b[:frames]
		if i < len(in) && len(in[i]) >= offset+frames {
			copy(b, in[i][offset:offset+frames])
		} else {
			clear(b)
		}
		e.inView[i] = b
	}
	for i, b := range e.outs {
		b = b[:frames]
		clear(b)
		e.outView[i] = b
	}
	e.plugin.Render(e.inView, e.outView, e.queue)
	// the dry signal is mixed against the history before this block
	e.postProc.Process(e.post.load(), e.info.Hints, e.outView, e.inView, e.latency, out, offset, frames)
	for i := len(e.outs); i < len(out); i++ {
		clear(out[i][offset : offset+frames])
	}
	e.latency.Update(e.inView, frames)
	if l := e.plugin.LatencyFrames(); l != e.reportedLatency {
		e.reportedLatency = l
		e.pendingLatency.Store(int64(l))
		e.notifier.Postpone(Notification{Kind: NotifyLatencyChanged, Index: l, Frame: offset})
	}
	e.guard.Unlock()
	return true
}

func (e *Engine) applyRTCalls() {
	for _, c := range e.rtCalls {
		if c.program {
			e.programs.SetMIDIProgram(c.index)
			e.program.Store(int32(c.index))
			continue
		}
		e.params.SetParameterValue(c.index, c.value, c.frame)
	}
	e.rtCalls = e.rtCalls[:0]
}

func (e *Engine) currentBank() uint32 {
	if p := int(e.program.Load()); p >= 0 && p < len(e.programList) {
		return e.programList[p].Bank
	}
	return 0
}

// queueReset queues the note silencing burst: all notes off and all sound off
// on every channel, or note off for every note on the control channel.
func (e *Engine) queueReset() {
	if e.Options()&hostcore.OptionSendAllSoundOff != 0 {
		for _, cc := range [...]uint16{hostcore.ControlAllNotesOff, hostcore.ControlAllSoundOff} {
			for ch := byte(0); ch < hostcore.MaxMIDIChannels; ch++ {
				e.enqueue(midiEvent(0, 0, hostcore.StatusControlChange|ch, byte(cc), 0))
			}
		}
		return
	}
	ch := e.ControlChannel()
	if ch < 0 {
		return
	}
	for k := byte(0); k < hostcore.MaxMIDINotes; k++ {
		e.enqueue(midiEvent(0, 0, hostcore.StatusNoteOff|byte(ch), k, 0))
	}
}

func (e *Engine) queueExternalNote(n externalNote) {
	status := hostcore.StatusNoteOn
	if n.velocity == 0 {
		status = hostcore.StatusNoteOff
	}
	e.enqueue(midiEvent(0, 0, status|n.channel, n.note, n.velocity))
}

// enqueue appends an event to the native queue of the current sub-block.
func (e *Engine) enqueue(ev hostcore.Event) bool {
	if len(e.queue) == cap(e.queue) {
		e.stats.droppedEvents.Add(1)
		if !e.queueFullReported {
			e.queueFullReported = true
			e.notifier.Postpone(Notification{Kind: NotifyQueueFull, Frame: ev.Time})
		}
		return false
	}
	e.queue = append(e.queue, ev)
	return true
}

func midiEvent(time int, port uint8, data ...byte) hostcore.Event {
	ev := hostcore.Event{Type: hostcore.EventTypeMIDI, Time: time}
	ev.MIDI.Port = port
	ev.MIDI.Size = copy(ev.MIDI.Data[:], data)
	if len(data) > 0 && data[0] < 0xF0 {
		ev.Channel = int8(data[0] & 0x0F)
	}
	return ev
}

func zeroBuffers(bufs [][]float32, offset, frames int) {
	for _, b := range bufs {
		end := offset + frames
		if end > len(b) {
			end = len(b)
		}
		if offset < end {
			clear(b[offset:end])
		}
	}
}
