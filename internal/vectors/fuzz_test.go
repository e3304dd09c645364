package vectors

import "testing"

// FuzzLoadBytes tests vector file parsing with arbitrary input.
func FuzzLoadBytes(f *testing.F) {
	f.Add("v.yaml", []byte(sampleYAML))
	f.Add("v.json", []byte(`{"version":1,"primitive":"x","vectors":[{"id":"a","input":"00","expected":"01"}]}`))
	f.Add("v.cbor", []byte{0xa1, 0x67, 'v', 'e', 'r', 's', 'i', 'o', 'n', 0x01})
	f.Add("v.yaml.lz4", []byte{0x04, 0x22, 0x4d, 0x18})

	f.Fuzz(func(t *testing.T, name string, data []byte) {
		// Should not panic
		_, _ = LoadBytes(name, data)
	})
}

// FuzzParseHex tests lenient hex decoding.
func FuzzParseHex(f *testing.F) {
	f.Add("00ff")
	f.Add("0x 12 34")
	f.Add("zz")

	f.Fuzz(func(t *testing.T, s string) {
		// Should not panic
		_, _ = ParseHex(s)
	})
}
