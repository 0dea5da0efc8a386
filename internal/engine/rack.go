package engine

import "fmt"

// Rack is one processing machine: a mono section feeding a stereo section.
// A stateful stage must not be shared between racks.
type Rack struct {
	Mono   []Stage
	Stereo []StereoStage
}

// ProcessMono runs the mono section on buf.
func (r *Rack) ProcessMono(buf []float32) {
	for _, s := range r.Mono {
		s.Process(buf)
	}
}

// ProcessStereo runs the stereo section on left and right.
func (r *Rack) ProcessStereo(left, right []float32) {
	for _, s := range r.Stereo {
		s.Process(left, right)
	}
}

// PrepareQuantum prepares every stage that implements Preparer.
func (r *Rack) PrepareQuantum(sampleRate float64, quantum int) error {
	for i, s := range r.Mono {
		if p, ok := s.(Preparer); ok {
			if err := p.PrepareQuantum(sampleRate, quantum); err != nil {
				return fmt.Errorf("mono stage %d: %w", i, err)
			}
		}
	}
	for i, s := range r.Stereo {
		if p, ok := s.(Preparer); ok {
			if err := p.PrepareQuantum(sampleRate, quantum); err != nil {
				return fmt.Errorf("stereo stage %d: %w", i, err)
			}
		}
	}
	return nil
}

// FinishBlock notifies every stage that implements Finisher.
func (r *Rack) FinishBlock() {
	for _, s := range r.Mono {
		if f, ok := s.(Finisher); ok {
			f.FinishBlock()
		}
	}
	for _, s := range r.Stereo {
		if f, ok := s.(Finisher); ok {
			f.FinishBlock()
		}
	}
}

// Pair runs a separate mono stage on each channel. Either side may be nil.
type Pair struct {
	Left, Right Stage
}

// Process implements StereoStage.
func (p Pair) Process(left, right []float32) {
	if p.Left != nil {
		p.Left.Process(left)
	}
	if p.Right != nil {
		p.Right.Process(right)
	}
}

// PrepareQuantum forwards to both sides.
func (p Pair) PrepareQuantum(sampleRate float64, quantum int) error {
	for _, s := range [...]Stage{p.Left, p.Right} {
		if prep, ok := s.(Preparer); ok {
			if err := prep.PrepareQuantum(sampleRate, quantum); err != nil {
				return err
			}
		}
	}
	return nil
}
