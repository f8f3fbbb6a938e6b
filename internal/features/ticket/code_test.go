package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var codeDate = time.Date(2024, time.June, 12, 10, 30, 0, 0, time.UTC)

func TestGenerateCodeKnownSegments(t *testing.T) {
	code := GenerateCode(CodeInput{
		Department: "IT",
		Location:   "IT Server",
		Device:     "Laptop",
		StoreID:    "abcXYZ123",
	}, codeDate)

	assert.Equal(t, "IT-ITV-LP-2406-123", code)
}

func TestGenerateCodeDeterministic(t *testing.T) {
	in := CodeInput{
		Department: "Human Resources",
		Location:   "Head Office",
		Device:     "Printer",
		StoreID:    "64f0c2a9b1d2e3f4a5b6c7d8",
	}
	first := GenerateCode(in, codeDate)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GenerateCode(in, codeDate))
	}
	assert.Equal(t, "HR-HO-PR-2406-7D8", first)
}

func TestGenerateCodeSubstringMatch(t *testing.T) {
	code := GenerateCode(CodeInput{
		Department: "IT",
		Location:   "it server room", // substring both ways, case folded
		Device:     "Laptop Computer",
		StoreID:    "abc123",
	}, codeDate)

	assert.Equal(t, "IT-ITV-LP-2406-123", code)
}

func TestGenerateCodeFallbacks(t *testing.T) {
	t.Run("unknown values take first three letters", func(t *testing.T) {
		code := GenerateCode(CodeInput{
			Department: "Logistics",
			Location:   "Pier 4",
			Device:     "Keyboard",
			StoreID:    "abc123",
		}, codeDate)
		assert.Equal(t, "LOG-PIE-KEY-2406-123", code)
	})

	t.Run("empty values take sentinels", func(t *testing.T) {
		code := GenerateCode(CodeInput{}, codeDate)
		assert.Equal(t, "GEN-OT-OT-2406-XXX", code)
	})

	t.Run("short id suffix", func(t *testing.T) {
		code := GenerateCode(CodeInput{Department: "IT", StoreID: "ab"}, codeDate)
		assert.Equal(t, "IT-OT-OT-2406-XXX", code)
	})
}

func TestGenerateCodeActivityOverride(t *testing.T) {
	in := CodeInput{
		Department: "IT",
		Location:   "IT Server",
		Device:     "Laptop",
		StoreID:    "abc123",
	}

	in.Activity = "Repair"
	assert.Equal(t, "IT-ITV-RPR-2406-123", GenerateCode(in, codeDate))

	// An activity the table does not know leaves the device segment alone.
	in.Activity = "Consulting"
	assert.Equal(t, "IT-ITV-LP-2406-123", GenerateCode(in, codeDate))
}

func TestCodeForUsesTicketFields(t *testing.T) {
	code := CodeFor(Ticket{
		ID:              "64f0c2a9b1d2e3f4a5b6c123",
		OwnerDepartment: "IT",
		Location:        "IT Server",
		Device:          "Laptop",
	}, "", codeDate)

	assert.Equal(t, "IT-ITV-LP-2406-123", code)
}
