package remote

import (
	"fmt"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/engine"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service carries google.protobuf.Struct payloads so no generated stubs
// are needed on either side.
const (
	serviceName       = "hark.engine.v1.Recognizer"
	infoMethod        = "/" + serviceName + "/Info"
	decodeBatchMethod = "/" + serviceName + "/DecodeBatch"
)

type wireRequest struct {
	Handle  string
	Samples []float32
	Final   bool
	Bias    []bias.Entry
}

type wireState struct {
	Handle   string
	Hyp      engine.Hypothesis
	Frames   int
	Trailing int
}

func encodeInfoRequest(mode engine.Mode) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"mode": structpb.NewStringValue(string(mode)),
	}}
}

func encodeInfo(info engine.Info, mode engine.Mode) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"mode":          structpb.NewStringValue(string(mode)),
		"sample_rate":   structpb.NewNumberValue(float64(info.SampleRate)),
		"chunk_samples": structpb.NewNumberValue(float64(info.ChunkSamples)),
		"frame_shift":   structpb.NewNumberValue(float64(info.FrameShift)),
		"alignment":     structpb.NewBoolValue(info.Alignment),
	}}
}

func decodeInfo(s *structpb.Struct) (engine.Info, engine.Mode) {
	f := s.GetFields()
	return engine.Info{
		SampleRate:   int(f["sample_rate"].GetNumberValue()),
		ChunkSamples: int(f["chunk_samples"].GetNumberValue()),
		FrameShift:   float32(f["frame_shift"].GetNumberValue()),
		Alignment:    f["alignment"].GetBoolValue(),
	}, engine.Mode(f["mode"].GetStringValue())
}

func encodeRequests(reqs []wireRequest) *structpb.Struct {
	items := make([]*structpb.Value, len(reqs))
	for i, r := range reqs {
		fields := map[string]*structpb.Value{
			"handle":  structpb.NewStringValue(r.Handle),
			"samples": floatList(r.Samples),
			"final":   structpb.NewBoolValue(r.Final),
		}
		if len(r.Bias) > 0 {
			entries := make([]*structpb.Value, len(r.Bias))
			for j, e := range r.Bias {
				entries[j] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
					"tokens":    stringList(e.Tokens),
					"display":   structpb.NewStringValue(e.Display),
					"boost":     structpb.NewNumberValue(float64(e.Boost)),
					"threshold": structpb.NewNumberValue(float64(e.Threshold)),
				}})
			}
			fields["bias"] = structpb.NewListValue(&structpb.ListValue{Values: entries})
		}
		items[i] = structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"requests": structpb.NewListValue(&structpb.ListValue{Values: items}),
	}}
}

func decodeRequests(s *structpb.Struct) ([]wireRequest, error) {
	items := s.GetFields()["requests"].GetListValue().GetValues()
	out := make([]wireRequest, len(items))
	for i, item := range items {
		f := item.GetStructValue().GetFields()
		if f == nil {
			return nil, fmt.Errorf("request %d is not an object", i)
		}
		out[i] = wireRequest{
			Handle:  f["handle"].GetStringValue(),
			Samples: readFloats(f["samples"]),
			Final:   f["final"].GetBoolValue(),
		}
		for _, raw := range f["bias"].GetListValue().GetValues() {
			ef := raw.GetStructValue().GetFields()
			out[i].Bias = append(out[i].Bias, bias.Entry{
				Tokens:    readStrings(ef["tokens"]),
				Display:   ef["display"].GetStringValue(),
				Boost:     float32(ef["boost"].GetNumberValue()),
				Threshold: float32(ef["threshold"].GetNumberValue()),
			})
		}
	}
	return out, nil
}

func encodeStates(states []wireState) *structpb.Struct {
	items := make([]*structpb.Value, len(states))
	for i, st := range states {
		fields := map[string]*structpb.Value{
			"handle":                  structpb.NewStringValue(st.Handle),
			"tokens":                  intList(st.Hyp.Tokens),
			"num_frames":              structpb.NewNumberValue(float64(st.Frames)),
			"trailing_silence_frames": structpb.NewNumberValue(float64(st.Trailing)),
			"lang":                    structpb.NewStringValue(st.Hyp.Lang),
			"emotion":                 structpb.NewStringValue(st.Hyp.Emotion),
			"event":                   structpb.NewStringValue(st.Hyp.Event),
		}
		// nil and empty differ: nil means the backend has no alignment.
		if st.Hyp.Timestamps != nil {
			fields["timestamps"] = floatList(st.Hyp.Timestamps)
		}
		if st.Hyp.Scores != nil {
			fields["scores"] = floatList(st.Hyp.Scores)
		}
		items[i] = structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"states": structpb.NewListValue(&structpb.ListValue{Values: items}),
	}}
}

func decodeStates(s *structpb.Struct) []wireState {
	items := s.GetFields()["states"].GetListValue().GetValues()
	out := make([]wireState, len(items))
	for i, item := range items {
		f := item.GetStructValue().GetFields()
		hyp := engine.Hypothesis{
			Tokens:  readInts(f["tokens"]),
			Lang:    f["lang"].GetStringValue(),
			Emotion: f["emotion"].GetStringValue(),
			Event:   f["event"].GetStringValue(),
		}
		if v, ok := f["timestamps"]; ok {
			hyp.Timestamps = readFloats(v)
		}
		if v, ok := f["scores"]; ok {
			hyp.Scores = readFloats(v)
		}
		out[i] = wireState{
			Handle:   f["handle"].GetStringValue(),
			Hyp:      hyp,
			Frames:   int(f["num_frames"].GetNumberValue()),
			Trailing: int(f["trailing_silence_frames"].GetNumberValue()),
		}
	}
	return out
}

func floatList(in []float32) *structpb.Value {
	values := make([]*structpb.Value, len(in))
	for i, v := range in {
		values[i] = structpb.NewNumberValue(float64(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func intList(in []int) *structpb.Value {
	values := make([]*structpb.Value, len(in))
	for i, v := range in {
		values[i] = structpb.NewNumberValue(float64(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func stringList(in []string) *structpb.Value {
	values := make([]*structpb.Value, len(in))
	for i, v := range in {
		values[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func readFloats(v *structpb.Value) []float32 {
	values := v.GetListValue().GetValues()
	out := make([]float32, len(values))
	for i, x := range values {
		out[i] = float32(x.GetNumberValue())
	}
	return out
}

func readInts(v *structpb.Value) []int {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]int, len(values))
	for i, x := range values {
		out[i] = int(x.GetNumberValue())
	}
	return out
}

func readStrings(v *structpb.Value) []string {
	values := v.GetListValue().GetValues()
	out := make([]string, len(values))
	for i, x := range values {
		out[i] = x.GetStringValue()
	}
	return out
}
