package services

import (
	"context"
	"strings"
)

// ---------------------------------------------------------------------------
// TTSService — interface for text-to-speech providers, plus the immutable
// voice and music lookup tables. The tables are built once at startup and
// injected where needed rather than read from package globals.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData  []byte
	DurationMs int
	Format     string // "mp3", "wav", etc.
}

// TTSService converts narration text into audio. voiceName is the friendly
// name the API exposes; the provider resolves it through its voice table.
type TTSService interface {
	GenerateSpeech(ctx context.Context, text, voiceName string) (*TTSResponse, error)
}

// Voice pairs a friendly name with the vendor's voice id.
type Voice struct {
	Name        string `json:"name"`
	VendorID    string `json:"-"`
	Description string `json:"description"`
}

// VoiceTable maps friendly voice names to vendor voice ids. Resolution is
// total: unknown names fall back to the australian-male voice.
type VoiceTable struct {
	voices   []Voice
	byName   map[string]string
	fallback string
}

const fallbackVoiceName = "australian-male"

// NewVoiceTable builds an immutable table from the given voices. The list
// must contain the australian-male fallback entry.
func NewVoiceTable(voices []Voice) *VoiceTable {
	byName := make(map[string]string, len(voices))
	for _, v := range voices {
		byName[v.Name] = v.VendorID
	}
	return &VoiceTable{
		voices:   voices,
		byName:   byName,
		fallback: byName[fallbackVoiceName],
	}
}

// DefaultVoiceTable returns the production voice lineup.
func DefaultVoiceTable() *VoiceTable {
	return NewVoiceTable([]Voice{
		{Name: "australian-male", VendorID: "IKne3meq5aSn9XLyUdCD", Description: "Warm Australian male, relaxed delivery"},
		{Name: "australian-female", VendorID: "XB0fDUnXU5powFXDhCwa", Description: "Bright Australian female, friendly tone"},
		{Name: "british-male", VendorID: "onwK4e9ZLuTAKqWW03F9", Description: "Polished British male, formal register"},
		{Name: "british-female", VendorID: "ThT5KcBeYPX3keUQqHPh", Description: "Crisp British female, confident pace"},
		{Name: "american-male", VendorID: "pNInz6obpgDQGcFmaJgB", Description: "Deep American male, steady narration"},
		{Name: "american-female", VendorID: "EXAVITQu4vr4xnSDxMaL", Description: "Smooth American female, upbeat energy"},
	})
}

// ResolveVoiceID maps a friendly name to a vendor voice id. Unknown or empty
// names resolve to the australian-male voice, never an error.
func (t *VoiceTable) ResolveVoiceID(name string) string {
	if id, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return t.fallback
}

// Voices lists the table contents for the API surface.
func (t *VoiceTable) Voices() []Voice {
	out := make([]Voice, len(t.voices))
	copy(out, t.voices)
	return out
}

// MusicTrack is one background-music option mixed under the voiceover.
type MusicTrack struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Mood string `json:"mood"`
}

// TrackTable maps track ids to music assets. Immutable after construction.
type TrackTable struct {
	tracks []MusicTrack
	byID   map[string]MusicTrack
}

// NewTrackTable builds an immutable table from the given tracks.
func NewTrackTable(tracks []MusicTrack) *TrackTable {
	byID := make(map[string]MusicTrack, len(tracks))
	for _, tr := range tracks {
		byID[tr.ID] = tr
	}
	return &TrackTable{tracks: tracks, byID: byID}
}

// DefaultTrackTable returns the production music lineup.
func DefaultTrackTable() *TrackTable {
	return NewTrackTable([]MusicTrack{
		{ID: "uplifting-piano", Name: "Uplifting Piano", URL: "https://assets.listingreel.com/music/uplifting-piano.mp3", Mood: "warm"},
		{ID: "modern-ambient", Name: "Modern Ambient", URL: "https://assets.listingreel.com/music/modern-ambient.mp3", Mood: "contemporary"},
		{ID: "coastal-acoustic", Name: "Coastal Acoustic", URL: "https://assets.listingreel.com/music/coastal-acoustic.mp3", Mood: "relaxed"},
		{ID: "luxury-strings", Name: "Luxury Strings", URL: "https://assets.listingreel.com/music/luxury-strings.mp3", Mood: "premium"},
	})
}

// ResolveTrackURL returns the asset URL for a track id, or "" for no music.
func (t *TrackTable) ResolveTrackURL(id string) string {
	if tr, ok := t.byID[id]; ok {
		return tr.URL
	}
	return ""
}

// Tracks lists the table contents for the API surface.
func (t *TrackTable) Tracks() []MusicTrack {
	out := make([]MusicTrack, len(t.tracks))
	copy(out, t.tracks)
	return out
}

// estimateAudioDuration approximates narration length from word count when
// the provider response carries no duration. ~150 wpm at normal speed.
func estimateAudioDuration(text string, speed float64) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	if speed <= 0 {
		speed = 1.0
	}
	ms := float64(words) / (150.0 / 60000.0) / speed
	return int(ms)
}
