package ber

import (
	"bytes"
	"math/rand"
	"testing"
)

func samplePDUs() [][]byte {
	var out [][]byte
	for i := 0; i < 5; i++ {
		seq := NewSequence()
		seq.AppendChild(NewInteger(ClassUniversal, TypePrimitive, TagInteger, int64(i)))
		seq.AppendChild(NewString(ClassUniversal, TypePrimitive, TagOctetString, string(bytes.Repeat([]byte{'a' + byte(i)}, i*37+1))))
		out = append(out, seq.Bytes())
	}
	return out
}

func TestFramerWholePDUsAtOnce(t *testing.T) {
	t.Parallel()
	pdus := samplePDUs()
	f := NewFramer()
	var got [][]byte
	for _, pdu := range pdus {
		packets, err := f.Feed(pdu)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range packets {
			got = append(got, p.Bytes())
		}
	}
	assertSamePDUs(t, pdus, got)
	if f.Buffered() != 0 {
		t.Errorf("expected nothing buffered, got %d bytes", f.Buffered())
	}
}

func TestFramerSplitAtEveryByteBoundary(t *testing.T) {
	t.Parallel()
	pdus := samplePDUs()
	var all []byte
	for _, pdu := range pdus {
		all = append(all, pdu...)
	}
	// Property 4: splitting the same byte stream at any set of boundaries
	// yields the same sequence of decoded PDUs.
	for trial := 0; trial < 20; trial++ {
		f := NewFramer()
		var got [][]byte
		pos := 0
		rng := rand.New(rand.NewSource(int64(trial)))
		for pos < len(all) {
			chunk := 1 + rng.Intn(7)
			if pos+chunk > len(all) {
				chunk = len(all) - pos
			}
			packets, err := f.Feed(all[pos : pos+chunk])
			if err != nil {
				t.Fatalf("trial %d: unexpected error: %v", trial, err)
			}
			for _, p := range packets {
				got = append(got, p.Bytes())
			}
			pos += chunk
		}
		assertSamePDUs(t, pdus, got)
	}
}

func TestFramerSingleByteAtATime(t *testing.T) {
	t.Parallel()
	pdus := samplePDUs()
	var all []byte
	for _, pdu := range pdus {
		all = append(all, pdu...)
	}
	f := NewFramer()
	var got [][]byte
	for _, b := range all {
		packets, err := f.Feed([]byte{b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range packets {
			got = append(got, p.Bytes())
		}
	}
	assertSamePDUs(t, pdus, got)
}

func TestFramerRejectsIndefiniteLength(t *testing.T) {
	t.Parallel()
	f := NewFramer()
	buf := []byte{
		byte(ClassUniversal) | byte(TypeConstructed) | byte(TagSequence),
		longFormBitmaskLen,
		byte(ClassUniversal) | byte(TypePrimitive) | byte(TagEOC), 0x00,
	}
	if _, err := f.Feed(buf); err != ErrIndefiniteLengthNotAllowed {
		t.Errorf("expected %v, got: %v", ErrIndefiniteLengthNotAllowed, err)
	}
}

func TestFramerTwoPDUsInOneFeed(t *testing.T) {
	t.Parallel()
	pdus := samplePDUs()[:2]
	var all []byte
	for _, pdu := range pdus {
		all = append(all, pdu...)
	}
	f := NewFramer()
	packets, err := f.Feed(all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}
	assertSamePDUs(t, pdus, [][]byte{packets[0].Bytes(), packets[1].Bytes()})
}

func assertSamePDUs(t *testing.T, want, got [][]byte) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d PDUs, got %d", len(want), len(got))
	}
	for i := range want {
		if !bytes.Equal(want[i], got[i]) {
			t.Errorf("PDU %d: expected % X, got % X", i, want[i], got[i])
		}
	}
}
