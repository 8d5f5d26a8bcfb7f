package soft

import "github.com/smazurov/encbench/internal/codec"

// encodeLoop consumes queued input in order and fills output buffers.
func (r *Runtime) encodeLoop(gen uint64, engine Engine) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		for r.activeLocked(gen) && r.err == nil && len(r.queued) == 0 {
			r.cond.Wait()
		}
		if !r.activeLocked(gen) || r.err != nil {
			r.mu.Unlock()
			return
		}
		in := r.queued[0]
		r.queued = r.queued[1:]
		frame := r.inputs[in.index].data[in.offset : in.offset+in.size]
		needCSD := !r.csdSent
		r.csdSent = true
		r.mu.Unlock()

		packets, err := r.process(engine, frame, in, needCSD)

		r.mu.Lock()
		if err != nil {
			r.failLocked(err)
			r.mu.Unlock()
			return
		}
		ok := r.emitLocked(gen, packets)
		eos := in.flags.Has(codec.FlagEndOfStream)
		if ok && eos {
			ok = r.emitLocked(gen, []Packet{{PTSUs: in.ptsUs, Flags: codec.FlagEndOfStream}})
			r.outputEOS = ok
		}
		if r.activeLocked(gen) {
			r.freeInputs = append(r.freeInputs, in.index)
			r.cond.Broadcast()
		}
		r.mu.Unlock()
		if !ok || eos {
			return
		}
	}
}

// process runs one input buffer through the engine without holding the lock.
func (r *Runtime) process(engine Engine, frame []byte, in queuedInput, needCSD bool) ([]Packet, error) {
	var packets []Packet
	if needCSD {
		if csd := engine.CodecConfig(); len(csd) > 0 {
			packets = append(packets, Packet{Data: csd, Flags: codec.FlagCodecConfig})
		}
	}
	if len(frame) > 0 {
		out, err := engine.Encode(frame, in.ptsUs)
		if err != nil {
			return nil, err
		}
		packets = append(packets, out...)
	}
	if in.flags.Has(codec.FlagEndOfStream) {
		out, err := engine.Flush()
		if err != nil {
			return nil, err
		}
		packets = append(packets, out...)
	}
	return packets, nil
}

// emitLocked copies packets into free output buffers, waiting for the client
// to release buffers when none are free. It reports false if the run stopped.
func (r *Runtime) emitLocked(gen uint64, packets []Packet) bool {
	for _, p := range packets {
		for r.activeLocked(gen) && len(r.freeOutputs) == 0 {
			r.cond.Wait()
		}
		if !r.activeLocked(gen) {
			return false
		}

		idx := r.freeOutputs[0]
		r.freeOutputs = r.freeOutputs[1:]
		buf := r.outputs[idx]
		if len(p.Data) > len(buf.data) {
			buf.data = make([]byte, len(p.Data))
		}
		n := copy(buf.data, p.Data)
		r.ready = append(r.ready, readyOutput{
			index: idx,
			info:  codec.BufferInfo{Size: n, PresentationTimeUs: p.PTSUs, Flags: p.Flags},
		})
		r.cond.Broadcast()
	}
	return true
}

// dispatchLoop delivers callbacks in priority order: error, format change,
// output, input. Free input is not announced once end of stream is queued.
func (r *Runtime) dispatchLoop(gen uint64, cb codec.Callback) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		var deliver func()
		for {
			if !r.activeLocked(gen) {
				r.mu.Unlock()
				return
			}
			if deliver = r.nextEventLocked(cb); deliver != nil {
				break
			}
			r.cond.Wait()
		}
		r.mu.Unlock()

		deliver()
	}
}

func (r *Runtime) nextEventLocked(cb codec.Callback) func() {
	if r.err != nil {
		if r.errDelivered {
			return nil
		}
		r.errDelivered = true
		err := r.err
		return func() { cb.OnError(r, err) }
	}

	if len(r.ready) > 0 {
		if !r.formatSent {
			r.formatSent = true
			format := r.outFormat.Clone()
			return func() { cb.OnFormatChanged(r, format) }
		}
		out := r.takeOutputLocked()
		return func() { cb.OnOutputAvailable(r, out.index, out.info) }
	}

	if len(r.freeInputs) > 0 && !r.inputEOS {
		idx := r.takeInputLocked()
		return func() { cb.OnInputAvailable(r, idx) }
	}
	return nil
}
