package models

// StringPtr returns a pointer to the given string.
// Useful for creating pointers to string literals or variables for optional fields.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to the given integer.
func IntPtr(i int) *int {
	return &i
}

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(i int64) *int64 {
	return &i
}
