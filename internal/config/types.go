// Package config resolves, parses, validates, and defaults hark configuration.
package config

// Config is the fully materialized runtime configuration used by hark.
type Config struct {
	Engine     EngineConfig       `json:"engine"`
	Feature    FeatureConfig      `json:"feature"`
	Online     OnlineModelConfig  `json:"online"`
	Offline    OfflineModelConfig `json:"offline"`
	Decoding   DecodingConfig     `json:"decoding"`
	Endpoint   EndpointConfig     `json:"endpoint"`
	Hotwords   HotwordConfig      `json:"hotwords"`
	Keywords   KeywordConfig      `json:"keywords"`
	TTS        TTSConfig          `json:"tts"`
	Denoiser   DenoiserConfig     `json:"denoiser"`
	Transcript TranscriptConfig   `json:"transcript"`
	Metrics    MetricsConfig      `json:"metrics"`
	Events     EventsConfig       `json:"events"`
}

// EngineConfig selects the inference backend.
type EngineConfig struct {
	// Backend is "reference" (in-process) or "remote" (gRPC).
	Backend       string `json:"backend"`
	Address       string `json:"address"`
	DialTimeoutMS int    `json:"dial_timeout_ms"`
	// Listen is the address `hark serve` binds.
	Listen string `json:"listen"`
}

// FeatureConfig describes the acoustic front end the models expect.
type FeatureConfig struct {
	SampleRate int `json:"sample_rate"`
	FeatureDim int `json:"feature_dim"`
}

// Runtime holds per-model execution settings.
type Runtime struct {
	NumThreads int    `json:"num_threads"`
	Provider   string `json:"provider"`
	Debug      bool   `json:"debug"`
}

type TransducerConfig struct {
	Encoder string `json:"encoder"`
	Decoder string `json:"decoder"`
	Joiner  string `json:"joiner"`
}

type EncoderDecoderConfig struct {
	Encoder string `json:"encoder"`
	Decoder string `json:"decoder"`
}

type SingleModelConfig struct {
	Model string `json:"model"`
}

// OnlineModelConfig lists the streaming model families. ModelType picks one.
type OnlineModelConfig struct {
	Transducer    TransducerConfig     `json:"transducer"`
	Paraformer    EncoderDecoderConfig `json:"paraformer"`
	Zipformer2CTC SingleModelConfig    `json:"zipformer2_ctc"`
	Tokens        string               `json:"tokens"`
	TokensBuf     string               `json:"tokens_buf"`
	ModelType     string               `json:"model_type"`
	ModelingUnit  string               `json:"modeling_unit"`
	BPEVocab      string               `json:"bpe_vocab"`
	Runtime
}

type WhisperConfig struct {
	Encoder      string `json:"encoder"`
	Decoder      string `json:"decoder"`
	Language     string `json:"language"`
	Task         string `json:"task"`
	TailPaddings int    `json:"tail_paddings"`
}

type SenseVoiceConfig struct {
	Model    string `json:"model"`
	Language string `json:"language"`
	UseITN   bool   `json:"use_itn"`
}

type MoonshineConfig struct {
	Preprocessor    string `json:"preprocessor"`
	Encoder         string `json:"encoder"`
	UncachedDecoder string `json:"uncached_decoder"`
	CachedDecoder   string `json:"cached_decoder"`
}

type LMConfig struct {
	Model string  `json:"model"`
	Scale float32 `json:"scale"`
}

// OfflineModelConfig lists the non-streaming model families.
type OfflineModelConfig struct {
	Transducer    TransducerConfig     `json:"transducer"`
	Paraformer    SingleModelConfig    `json:"paraformer"`
	NemoCTC       SingleModelConfig    `json:"nemo_ctc"`
	Whisper       WhisperConfig        `json:"whisper"`
	TDNN          SingleModelConfig    `json:"tdnn"`
	SenseVoice    SenseVoiceConfig     `json:"sense_voice"`
	Moonshine     MoonshineConfig      `json:"moonshine"`
	FireRedASR    EncoderDecoderConfig `json:"fire_red_asr"`
	TeleSpeechCTC SingleModelConfig    `json:"telespeech_ctc"`
	LM            LMConfig             `json:"lm"`
	Tokens        string               `json:"tokens"`
	ModelType     string               `json:"model_type"`
	ModelingUnit  string               `json:"modeling_unit"`
	BPEVocab      string               `json:"bpe_vocab"`
	Runtime
}

// DecodingConfig controls the search over model outputs.
type DecodingConfig struct {
	Method         string  `json:"method"`
	MaxActivePaths int     `json:"max_active_paths"`
	BlankPenalty   float32 `json:"blank_penalty"`
}

// EndpointConfig holds the three endpoint rule thresholds in seconds.
type EndpointConfig struct {
	Enable                  bool    `json:"enable"`
	Rule1MinTrailingSilence float32 `json:"rule1_min_trailing_silence"`
	Rule2MinTrailingSilence float32 `json:"rule2_min_trailing_silence"`
	Rule3MinUtteranceLength float32 `json:"rule3_min_utterance_length"`
}

// HotwordConfig lists session-wide bias phrases. Entries come from File,
// Buf, and every set named in Global.
type HotwordConfig struct {
	File       string              `json:"file"`
	Buf        string              `json:"buf"`
	Score      float32             `json:"score"`
	Global     []string            `json:"global"`
	Sets       map[string]VocabSet `json:"sets"`
	MaxEntries int                 `json:"max_entries"`
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Boost   float32  `json:"boost"`
	Phrases []string `json:"phrases"`
}

// KeywordConfig configures keyword spotting. The keyword list is mandatory.
type KeywordConfig struct {
	Model             OnlineModelConfig `json:"model"`
	File              string            `json:"file"`
	Buf               string            `json:"buf"`
	Score             float32           `json:"score"`
	Threshold         float32           `json:"threshold"`
	NumTrailingBlanks int               `json:"num_trailing_blanks"`
	MaxActivePaths    int               `json:"max_active_paths"`
}

type VitsConfig struct {
	Model       string  `json:"model"`
	Lexicon     string  `json:"lexicon"`
	Tokens      string  `json:"tokens"`
	DataDir     string  `json:"data_dir"`
	DictDir     string  `json:"dict_dir"`
	NoiseScale  float32 `json:"noise_scale"`
	NoiseScaleW float32 `json:"noise_scale_w"`
	LengthScale float32 `json:"length_scale"`
}

type MatchaConfig struct {
	AcousticModel string  `json:"acoustic_model"`
	Vocoder       string  `json:"vocoder"`
	Lexicon       string  `json:"lexicon"`
	Tokens        string  `json:"tokens"`
	DataDir       string  `json:"data_dir"`
	DictDir       string  `json:"dict_dir"`
	NoiseScale    float32 `json:"noise_scale"`
	LengthScale   float32 `json:"length_scale"`
}

type KokoroConfig struct {
	Model       string  `json:"model"`
	Voices      string  `json:"voices"`
	Tokens      string  `json:"tokens"`
	DataDir     string  `json:"data_dir"`
	DictDir     string  `json:"dict_dir"`
	Lexicon     string  `json:"lexicon"`
	LengthScale float32 `json:"length_scale"`
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	Vits            VitsConfig   `json:"vits"`
	Matcha          MatchaConfig `json:"matcha"`
	Kokoro          KokoroConfig `json:"kokoro"`
	ModelType       string       `json:"model_type"`
	RuleFsts        string       `json:"rule_fsts"`
	RuleFars        string       `json:"rule_fars"`
	MaxNumSentences int          `json:"max_num_sentences"`
	SilenceScale    float32      `json:"silence_scale"`
	Runtime
}

// DenoiserConfig configures speech enhancement.
type DenoiserConfig struct {
	GTCRN SingleModelConfig `json:"gtcrn"`
	Runtime
}

// TranscriptConfig controls how endpointed utterances are joined.
type TranscriptConfig struct {
	TrailingSpace       bool `json:"trailing_space"`
	CapitalizeSentences bool `json:"capitalize_sentences"`
}

// MetricsConfig enables the Prometheus HTTP endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// EventsConfig controls result publishing to Kafka.
type EventsConfig struct {
	Enabled      bool     `json:"enabled"`
	Brokers      []string `json:"brokers"`
	Topic        string   `json:"topic"`
	KeywordTopic string   `json:"keyword_topic"`
	Principal    string   `json:"principal"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
