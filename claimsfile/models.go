package claimsfile

import "time"

// FileType identifies the role of an input file within the dataset root.
type FileType int

const (
	FileTypeUnknown FileType = iota
	// FileTypePharmacy is a yearly pharmaceutical claims extract
	// (PBS_SAMPLE_10PCT_<year>.csv).
	FileTypePharmacy
	// FileTypeService is a medical-service claims extract (MBS_*.csv).
	FileTypeService
	// FileTypePinLookup is the patient demographics/window table
	// (SAMPLE_PIN_LOOKUP.csv).
	FileTypePinLookup
)

func (t FileType) String() string {
	switch t {
	case FileTypePharmacy:
		return "pharmacy"
	case FileTypeService:
		return "service"
	case FileTypePinLookup:
		return "pin-lookup"
	default:
		return "unknown"
	}
}

// Metadata is the information parsed from an input filename.
type Metadata struct {
	Name         string
	Type         FileType
	Year         int // set for pharmacy files, 0 otherwise
	FilePath     string
	DeliveryDate time.Time
}

func (m Metadata) String() string {
	if m.FilePath != "" {
		return m.FilePath
	}
	return m.Name
}
