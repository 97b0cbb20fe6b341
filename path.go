package dbus

// ParseObjectPath validates s as a DBus object path and returns an
// ObjectPath [Value] wrapping it. Unlike [ObjectPath], which defers
// validation to marshal time, ParseObjectPath rejects a malformed
// path immediately.
func ParseObjectPath(s string) (Value, error) {
	if err := validateObjectPath(s); err != nil {
		return Value{}, err
	}
	return ObjectPath(s), nil
}
