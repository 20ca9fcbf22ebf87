package types

// Version is the canonical project version.
// The CLI, the journal format, and the ack notification payload share it.
const Version = "0.3.0"

// JournalVersion is the on-disk ack journal format version.
const JournalVersion = Version
