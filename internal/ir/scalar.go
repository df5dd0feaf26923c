package ir

// ScalarType tags the wire type of one captured value or record field.
// The tags mirror the deployment transport's scalar enum; INT is the
// generic integer fallback used when the resolver cannot refine a type.
type ScalarType string

const (
	ScalarUnknown ScalarType = "UNKNOWN"
	ScalarBool    ScalarType = "BOOL"
	ScalarInt     ScalarType = "INT"
	ScalarInt8    ScalarType = "INT8"
	ScalarInt16   ScalarType = "INT16"
	ScalarInt32   ScalarType = "INT32"
	ScalarInt64   ScalarType = "INT64"
	ScalarUInt    ScalarType = "UINT"
	ScalarUInt8   ScalarType = "UINT8"
	ScalarUInt16  ScalarType = "UINT16"
	ScalarUInt32  ScalarType = "UINT32"
	ScalarUInt64  ScalarType = "UINT64"
	ScalarFloat   ScalarType = "FLOAT"
	ScalarDouble  ScalarType = "DOUBLE"
	ScalarString  ScalarType = "STRING"
)

// validScalarTypes is the closed set accepted from resolver facts.
var validScalarTypes = map[ScalarType]bool{
	ScalarUnknown: true,
	ScalarBool:    true,
	ScalarInt:     true,
	ScalarInt8:    true,
	ScalarInt16:   true,
	ScalarInt32:   true,
	ScalarInt64:   true,
	ScalarUInt:    true,
	ScalarUInt8:   true,
	ScalarUInt16:  true,
	ScalarUInt32:  true,
	ScalarUInt64:  true,
	ScalarFloat:   true,
	ScalarDouble:  true,
	ScalarString:  true,
}

// IsValid reports whether t is a known scalar tag.
func (t ScalarType) IsValid() bool {
	return validScalarTypes[t]
}
