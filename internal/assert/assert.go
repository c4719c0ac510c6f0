package assert

// NotNil panics if value is nil. It is meant for constructor arguments, a nil
// dependency there is a programming error rather than a runtime condition.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

func NonNegative[T ~int | ~int64 | ~float64](n T) {
	if n < 0 {
		panic("expected value to be non-negative")
	}
}
