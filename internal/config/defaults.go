package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	runtime := Runtime{NumThreads: 1, Provider: "cpu"}

	return Config{
		Engine: EngineConfig{
			Backend:       "reference",
			Address:       "127.0.0.1:50051",
			DialTimeoutMS: 3000,
			Listen:        "127.0.0.1:50051",
		},
		Feature: FeatureConfig{SampleRate: 16000, FeatureDim: 80},
		Online:  OnlineModelConfig{Runtime: runtime},
		Offline: OfflineModelConfig{
			Whisper: WhisperConfig{Task: "transcribe", TailPaddings: -1},
			LM:      LMConfig{Scale: 0.5},
			Runtime: runtime,
		},
		Decoding: DecodingConfig{
			Method:         "greedy_search",
			MaxActivePaths: 4,
		},
		Endpoint: EndpointConfig{
			Enable:                  true,
			Rule1MinTrailingSilence: 1.2,
			Rule2MinTrailingSilence: 2.4,
			Rule3MinUtteranceLength: 20,
		},
		Hotwords: HotwordConfig{
			Score:      1.5,
			Sets:       map[string]VocabSet{},
			MaxEntries: 1024,
		},
		Keywords: KeywordConfig{
			Model:             OnlineModelConfig{Runtime: runtime},
			Score:             1.0,
			Threshold:         0.25,
			NumTrailingBlanks: 1,
			MaxActivePaths:    4,
		},
		TTS: TTSConfig{
			MaxNumSentences: 1,
			SilenceScale:    0.2,
			Runtime:         runtime,
		},
		Denoiser: DenoiserConfig{Runtime: runtime},
		Transcript: TranscriptConfig{
			TrailingSpace:       false,
			CapitalizeSentences: true,
		},
		Events: EventsConfig{
			Topic:        "hark.utterances",
			KeywordTopic: "hark.keywords",
		},
	}
}
