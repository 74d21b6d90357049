package wifi

// Raw encryption codes reported by radios. The values follow the WiFiNINA
// firmware numbering so that adapters for it can pass codes through.
const (
	CodeTKIP = 2
	CodeCCMP = 4
	CodeWEP  = 5
	CodeNone = 7
	CodeAuto = 8
)

// Encryption is the coarse security category of an access point.
type Encryption int

const (
	EncryptionUnknown Encryption = iota
	EncryptionOpen
	EncryptionWEP
	EncryptionWPA
	EncryptionWPA2
	EncryptionAuto
)

// ClassifyEncryption maps a radio-reported code to an Encryption.
// Unrecognized codes map to EncryptionUnknown.
func ClassifyEncryption(code int) Encryption {
	switch code {
	case CodeNone:
		return EncryptionOpen
	case CodeWEP:
		return EncryptionWEP
	case CodeTKIP:
		return EncryptionWPA
	case CodeCCMP:
		return EncryptionWPA2
	case CodeAuto:
		return EncryptionAuto
	default:
		return EncryptionUnknown
	}
}

func (e Encryption) String() string {
	switch e {
	case EncryptionOpen:
		return "Open"
	case EncryptionWEP:
		return "WEP"
	case EncryptionWPA:
		return "WPA"
	case EncryptionWPA2:
		return "WPA2"
	case EncryptionAuto:
		return "Auto"
	default:
		return "Unknown"
	}
}

// IsSecure reports whether joining requires a passphrase.
func (e Encryption) IsSecure() bool {
	return e != EncryptionOpen
}
