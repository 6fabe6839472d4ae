// Package util provides utility functions for the GetYourLifeBack application.
package util

import (
	"fmt"
	"math/rand/v2"
)

// OTP code bounds: six digits, never a leading zero.
const (
	otpCodeMin = 100000
	otpCodeMax = 999999
)

// GenerateOTPCode generates a uniformly random 6-digit passcode in the range
// 100000-999999, returned as its decimal string form.
func GenerateOTPCode() string {
	return fmt.Sprintf("%06d", otpCodeMin+rand.IntN(otpCodeMax-otpCodeMin+1))
}

// IsSixDigitCode reports whether s is exactly six ASCII digits.
func IsSixDigitCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
