package governor

// SpeedToRPM converts vehicle speed to wheel rotation rate for the given
// wheel circumference:
//
//	rpm = kph * 1e6 / 60 / circumference_mm = kph * 100000 / (circumference_mm * 6)
//
// Integer division truncates toward zero, so results are bit-identical on
// every target. SpeedToRPM(0, c) is 0 for any circumference, and the result
// never decreases as speed rises.
func SpeedToRPM(speedKPH uint8, wheelCircumferenceMM uint32) uint16 {
	return uint16(uint32(speedKPH) * 100000 / (wheelCircumferenceMM * 6))
}
