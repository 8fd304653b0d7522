package common

// BankFileID identifies a Kilohearts bank container. The leading high bit
// catches transfers that strip bit 7.
var BankFileID = []byte{0x89, 'k', 'H', 's'}

// CorruptionCheckBytes follow the file id: CRLF, an end-of-file marker, and
// a bare LF. Line-ending conversion or EOF-char truncation anywhere in the
// pipeline corrupts this sequence.
var CorruptionCheckBytes = []byte{0x0D, 0x0A, 0x1A, 0x0A}

// FormatVersionBytes is the 8-byte ASCII version tag.
var FormatVersionBytes = []byte("Bank0001")

const (
	// BankHeaderLength is the combined length of the file id, corruption
	// check bytes, and version tag.
	BankHeaderLength = 16

	// LocationSize is the on-disk size of one location record:
	// three little-endian uint64 fields.
	LocationSize = 24

	// PathSeparator is the separator used for paths stored inside a bank,
	// regardless of host conventions.
	PathSeparator = "/"

	// MetadataFileName is the reserved root-level metadata entry.
	MetadataFileName = "index.json"

	// BackgroundFileStem is the basename (sans extension) of the optional
	// root-level background image.
	BackgroundFileStem = "background"

	// BankFileExtension is the conventional container file extension.
	BankFileExtension = ".bank"
)

// BackgroundFileExtensions lists the accepted background image extensions,
// in lookup order.
var BackgroundFileExtensions = []string{"png", "jpg", "jpeg"}
