package ir

// TranscriptVersion is bumped whenever the canonical rendering changes in a
// way that would invalidate previously recorded transcripts.
const TranscriptVersion = "1"
