package constants

// SourceKind names the decoder family a line record came from.
type SourceKind string

const (
	SourceUnknown  SourceKind = "unknown"
	SourceVendorA  SourceKind = "VendorA"
	SourceVendorB  SourceKind = "VendorB"
	SourceVendorC  SourceKind = "VendorC"
	SourceAssisted SourceKind = "Assisted"
)

// Channel is the submission channel of the AI-assisted decoder.
type Channel string

const (
	ChannelDocument  Channel = "document"
	ChannelChatImage Channel = "chat_image"
	ChannelFreeText  Channel = "free_text"
)

// Date layout shared by every canonical record.
const DateLayout = "2006/01/02"
