package memory

import "context"

// PDC models the processor dependent code ROM: a read-only region that
// is directly fetchable by the fetch/decode stage, bypassing the
// instruction cache entirely. Writes are accepted and silently
// discarded, matching real ROM semantics without introducing a
// separate error path the pipeline would have to special case.
type PDC struct {
	words   []uint32
	latency uint32
	Stats   Stats
}

// NewPDC allocates a PDC region of sizeWords preloaded with image,
// which may be shorter than sizeWords (the remainder reads as zero).
func NewPDC(sizeWords int, latency uint32, image []uint32) *PDC {
	p := &PDC{words: make([]uint32, sizeWords), latency: latency}
	copy(p.words, image)
	return p
}

func (p *PDC) index(addr uint32) uint32 { return addr / 4 % uint32(len(p.words)) }

func (p *PDC) Latency() uint32 { return p.latency }

func (p *PDC) ReadWord(_ context.Context, req *Request) (uint32, bool) {
	if !stepLatency(req, p.latency) {
		return 0, false
	}
	p.Stats.Reads++
	return p.words[p.index(req.Addr)], true
}

func (p *PDC) WriteWord(_ context.Context, req *Request) bool {
	return stepLatency(req, p.latency)
}

func (p *PDC) ReadBlock(_ context.Context, req *Request) bool {
	if !stepLatency(req, p.latency*uint32(max(1, len(req.Data)))) {
		return false
	}
	base := p.index(req.Addr)
	for i := range req.Data {
		req.Data[i] = p.words[(base+uint32(i))%uint32(len(p.words))]
	}
	return true
}

func (p *PDC) WriteBlock(_ context.Context, req *Request) bool {
	return stepLatency(req, p.latency*uint32(max(1, len(req.Data))))
}

func (p *PDC) FlushBlock(_ context.Context, _ uint32) bool { return true }
func (p *PDC) PurgeBlock(_ context.Context, _ uint32) bool { return true }
func (p *PDC) AbortOp()                                    {}
