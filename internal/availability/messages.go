package availability

import (
	"errors"
	"strings"

	"table-reservation-backend/internal/hold"
)

var messages = map[string]map[error]string{
	"en": {
		hold.ErrFullyBooked: "This time slot is fully booked. Please choose another time.",
		hold.ErrHeldByOther: "This time slot is currently being held by another customer. Please try again shortly or choose another time.",
		ErrUnavailable:      "Sorry, this time slot has just been booked. Please choose another time.",
		ErrClosed:           "The restaurant is closed on the selected date.",
		ErrOutsideHours:     "The selected time is outside our opening hours.",
	},
	"th": {
		hold.ErrFullyBooked: "ช่วงเวลานี้มีการจองเต็มแล้ว กรุณาเลือกเวลาอื่น",
		hold.ErrHeldByOther: "ช่วงเวลานี้กำลังถูกจองโดยลูกค้าท่านอื่น กรุณาลองใหม่อีกครั้งหรือเลือกเวลาอื่น",
		ErrUnavailable:      "ขออภัย ช่วงเวลานี้เพิ่งถูกจองไป กรุณาเลือกเวลาอื่น",
		ErrClosed:           "ร้านปิดทำการในวันที่เลือก",
		ErrOutsideHours:     "เวลาที่เลือกอยู่นอกเวลาทำการ",
	},
}

// Message returns the customer-facing text for err in locale, falling back
// to English, then to err's own text.
func Message(err error, locale string) string {
	lang := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	table, ok := messages[lang]
	if !ok {
		table = messages["en"]
	}
	for target, msg := range table {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}
