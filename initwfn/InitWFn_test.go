package initwfn

import (
	"encoding/json"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	init, err := NewGlorotU(1.5)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(init)
	if err != nil {
		t.Fatal(err)
	}

	var decoded InitWFn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Type != GlorotU {
		t.Errorf("type: got %v, want %v", decoded.Type, GlorotU)
	}
	if decoded.Config.(GlorotUConfig).Gain != 1.5 {
		t.Errorf("gain: got %v, want 1.5",
			decoded.Config.(GlorotUConfig).Gain)
	}
	if decoded.InitWFn() == nil {
		t.Error("decoded wrapper should hold a usable InitWFn")
	}
}

func TestGaussianRoundTrip(t *testing.T) {
	init, err := NewGaussian(0.0, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(init)
	if err != nil {
		t.Fatal(err)
	}

	var decoded InitWFn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	conf := decoded.Config.(GaussianConfig)
	if conf.Mean != 0.0 || conf.StdDev != 0.02 {
		t.Errorf("config: got %+v, want mean 0 stddev 0.02", conf)
	}
}
