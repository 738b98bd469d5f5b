// Package chat reads and writes CHAT transcripts (.cha).
//
// Parse turns a transcript into timeline utterances plus a participant
// registry built from the @Participants and @ID headers. Write serializes it
// back, regenerating the participant headers from the registry so speakers
// added during alignment are declared. Other headers, dependent tiers and
// untimed utterances survive the round trip.
package chat
