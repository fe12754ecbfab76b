package engine

import "github.com/vsariola/hostcore"

// dispatch applies one event of the cycle. frame is the event time relative
// to the start of the sub-block that will be rendered next.
func (e *Engine) dispatch(ev hostcore.Event, port int, frame int) {
	switch ev.Type {
	case hostcore.EventTypeControl:
		e.dispatchControl(ev, frame)
	case hostcore.EventTypeMIDI:
		e.dispatchMIDI(ev, port, frame)
	}
}

func (e *Engine) dispatchControl(ev hostcore.Event, frame int) {
	ctrl := ev.Control
	opts := e.Options()
	onCtrlChannel := ev.Channel == e.ControlChannel()
	switch ctrl.Type {
	case hostcore.ControlTypeParameter:
		if ev.Channel == hostcore.NonMIDIChannel {
			// not a MIDI controller: param is the parameter index
			if int(ctrl.Param) < len(e.paramInfos) {
				e.setParameterRT(int(ctrl.Param), ctrl.Value, ev.Time, frame)
			}
			return
		}
		if onCtrlChannel && e.backendShortcut(ctrl, ev.Time) {
			ctrl.Handled = true
		}
		for k := range e.paramInfos {
			b := &e.bindings[k]
			if b.channel.Load() != int32(ev.Channel) || b.control.Load() != int32(ctrl.Param) {
				continue
			}
			hints := e.paramInfos[k].Hints
			if hints&hostcore.ParameterIsOutput != 0 || hints&hostcore.ParameterIsAutomatable == 0 {
				continue
			}
			e.setParameterRT(k, ctrl.Value, ev.Time, frame)
			ctrl.Handled = true
		}
		if !ctrl.Handled {
			e.notifier.Postpone(Notification{Kind: NotifyControlUnclaimed, Channel: ev.Channel, Index: int(ctrl.Param), Value: ctrl.Value, Frame: ev.Time})
		}
		// raw controllers are forwarded whether handled or not
		if opts&hostcore.OptionSendControlChanges != 0 && ctrl.Param < hostcore.MaxMIDIValue {
			e.forwardControl(ctrl, ev.Channel, frame)
		}
	case hostcore.ControlTypeMIDIBank:
		if opts&hostcore.OptionMapProgramChanges != 0 {
			if onCtrlChannel {
				e.nextBank = uint32(ctrl.Param)
			}
		} else if opts&hostcore.OptionSendProgramChanges != 0 {
			e.forwardControl(ctrl, ev.Channel, frame)
		}
	case hostcore.ControlTypeMIDIProgram:
		if opts&hostcore.OptionMapProgramChanges != 0 {
			if onCtrlChannel {
				e.setProgramRT(e.nextBank, uint32(ctrl.Param), ev.Time, frame)
			}
		} else if opts&hostcore.OptionSendProgramChanges != 0 {
			e.forwardControl(ctrl, ev.Channel, frame)
		}
	case hostcore.ControlTypeAllSoundOff:
		if opts&hostcore.OptionSendAllSoundOff != 0 {
			e.forwardControl(ctrl, ev.Channel, frame)
		}
	case hostcore.ControlTypeAllNotesOff:
		if opts&hostcore.OptionSendAllSoundOff != 0 {
			if onCtrlChannel && !e.allNotesOffSent {
				e.allNotesOffSent = true
				e.notifier.Postpone(Notification{Kind: NotifyAllNotesOff, Channel: ev.Channel, Frame: ev.Time})
			}
			e.forwardControl(ctrl, ev.Channel, frame)
		}
	}
}

// backendShortcut handles the controllers mapped to host-side processing:
// breath to dry/wet, channel volume to volume and balance to the balance
// pair. It reports whether the controller was taken.
func (e *Engine) backendShortcut(ctrl hostcore.ControlEvent, time int) bool {
	hints := e.info.Hints
	v := ctrl.Value
	switch {
	case hostcore.IsBreath(ctrl.Param) && hints&hostcore.HintCanDryWet != 0:
		v = clampFloat(v, 0, 1)
		e.post.dryWet.Store(v)
		e.postParameter(ParameterDryWet, v, time)
	case hostcore.IsChannelVolume(ctrl.Param) && hints&hostcore.HintCanVolume != 0:
		v = clampFloat(v*127/100, 0, 1.27)
		e.post.volume.Store(v)
		e.postParameter(ParameterVolume, v, time)
	case hostcore.IsBalance(ctrl.Param) && hints&hostcore.HintCanBalance != 0:
		left, right := float32(-1), float32(1)
		v = v/0.5 - 1
		switch {
		case v < 0:
			right = v*2 + 1
		case v > 0:
			left = v*2 - 1
		}
		e.post.balanceLeft.Store(left)
		e.post.balanceRight.Store(right)
		e.postParameter(ParameterBalanceLeft, left, time)
		e.postParameter(ParameterBalanceRight, right, time)
	default:
		return false
	}
	return true
}

func (e *Engine) postParameter(index int, value float32, time int) {
	e.notifier.Postpone(Notification{Kind: NotifyParameterChanged, Channel: hostcore.NonMIDIChannel, Index: index, Value: value, Frame: time})
}

// setParameterRT schedules a plugin parameter change for the next sub-block.
func (e *Engine) setParameterRT(index int, normalized float32, time, frame int) {
	v := e.paramInfos[index].Unnormalize(normalized)
	if !e.addRTCall(rtCall{index: index, value: v, frame: frame}) {
		return
	}
	e.postParameter(index, v, time)
}

// setProgramRT selects the plugin program with the given bank and program
// number, if there is one.
func (e *Engine) setProgramRT(bank, program uint32, time, frame int) {
	for k, p := range e.programList {
		if p.Bank != bank || p.Program != program {
			continue
		}
		if e.addRTCall(rtCall{program: true, index: k, frame: frame}) {
			e.notifier.Postpone(Notification{Kind: NotifyProgramChanged, Channel: hostcore.NonMIDIChannel, Index: k, Frame: time})
		}
		return
	}
}

func (e *Engine) addRTCall(c rtCall) bool {
	if len(e.rtCalls) == cap(e.rtCalls) {
		e.stats.droppedEvents.Add(1)
		return false
	}
	e.rtCalls = append(e.rtCalls, c)
	return true
}

func (e *Engine) forwardControl(ctrl hostcore.ControlEvent, channel int8, frame int) {
	if channel < 0 {
		return
	}
	if ev, ok := ctrl.ToMIDIEvent(frame, uint8(channel)); ok {
		e.enqueue(ev)
	}
}

func (e *Engine) dispatchMIDI(ev hostcore.Event, port int, frame int) {
	data := ev.MIDI.Bytes()
	if len(data) == 0 {
		return
	}
	status := hostcore.StatusOf(data[0])
	opts := e.Options()
	switch status {
	case hostcore.StatusNoteOn, hostcore.StatusNoteOff:
		if opts&hostcore.OptionSkipSendingNotes != 0 {
			return
		}
	case hostcore.StatusChannelPressure:
		if opts&hostcore.OptionSendChannelPressure == 0 {
			return
		}
	case hostcore.StatusControlChange:
		if opts&hostcore.OptionSendControlChanges == 0 {
			return
		}
	case hostcore.StatusPolyAftertouch:
		if opts&hostcore.OptionSendNoteAftertouch == 0 {
			return
		}
	case hostcore.StatusPitchBend:
		if opts&hostcore.OptionSendPitchbend == 0 {
			return
		}
	}
	if status == hostcore.StatusNoteOn && (len(data) < 3 || data[2] == 0) {
		// note on with zero velocity
		status = hostcore.StatusNoteOff
	}
	native := ev
	native.Time = frame
	native.MIDI.Port = uint8(port)
	if status < 0xF0 {
		native.Channel = int8(data[0] & 0x0F)
		if native.MIDI.Ext == nil {
			native.MIDI.Data[0] = status | data[0]&0x0F
		}
	}
	if !e.enqueue(native) {
		return
	}
	switch {
	case status == hostcore.StatusNoteOn:
		e.notifier.Postpone(Notification{Kind: NotifyNoteOn, Channel: native.Channel, Index: int(data[1]), Value: float32(data[2]), Frame: ev.Time})
	case status == hostcore.StatusNoteOff && len(data) > 1:
		e.notifier.Postpone(Notification{Kind: NotifyNoteOff, Channel: native.Channel, Index: int(data[1]), Frame: ev.Time})
	}
}
