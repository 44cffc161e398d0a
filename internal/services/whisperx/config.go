package whisperx

// UVXCommand is the launcher WhisperX runs under.
const UVXCommand = "uvx"

const (
	DefaultModel      = "large-v3"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"

	pypiIndex = "https://pypi.org/simple"
	cudaIndex = "https://download.pytorch.org/whl/cu128"
)

// Config selects the model, device and speaker handling for a run.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote".
	VADMethod string
	// HFToken unlocks the pyannote models used for VAD and diarization.
	HFToken string
	// Language is an ISO 639-1 code; anything else auto-detects.
	Language    string
	Diarize     bool
	MinSpeakers int
	MaxSpeakers int
	Tuning      Tuning
}

// Tuning holds decoder knobs passed straight through to WhisperX. Zero
// fields fall back to DefaultTuning.
type Tuning struct {
	BatchSize   string
	ChunkSize   string
	VADOnset    string
	VADOffset   string
	BeamSize    string
	BestOf      string
	Temperature string
	Patience    string
}

// DefaultTuning favours accuracy on long-form speech over throughput.
func DefaultTuning() Tuning {
	return Tuning{
		BatchSize:   "4",
		ChunkSize:   "15",
		VADOnset:    "0.08",
		VADOffset:   "0.07",
		BeamSize:    "10",
		BestOf:      "10",
		Temperature: "0.0",
		Patience:    "1.0",
	}
}

func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	for _, pair := range []struct{ dst, def *string }{
		{&t.BatchSize, &d.BatchSize},
		{&t.ChunkSize, &d.ChunkSize},
		{&t.VADOnset, &d.VADOnset},
		{&t.VADOffset, &d.VADOffset},
		{&t.BeamSize, &d.BeamSize},
		{&t.BestOf, &d.BestOf},
		{&t.Temperature, &d.Temperature},
		{&t.Patience, &d.Patience},
	} {
		if *pair.dst == "" {
			*pair.dst = *pair.def
		}
	}
	return t
}
