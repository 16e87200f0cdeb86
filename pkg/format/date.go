package format

import (
	"strings"
	"time"
	"unicode/utf8"
)

var frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Date renders dd/MM/yyyy.
func Date(t time.Time) string {
	return t.Format("02/01/2006")
}

// DateTime renders "dd/MM/yyyy à HH:mm".
func DateTime(t time.Time) string {
	return t.Format("02/01/2006") + " à " + t.Format("15:04")
}

// LongDate renders "lundi 12 février 2024".
func LongDate(t time.Time) string {
	return frenchWeekdays[t.Weekday()] + " " + t.Format("2") + " " + frenchMonths[t.Month()-1] + " " + t.Format("2006")
}

func Initials(firstName, lastName string) string {
	first, _ := utf8.DecodeRuneInString(firstName)
	last, _ := utf8.DecodeRuneInString(lastName)
	var b strings.Builder
	if first != utf8.RuneError {
		b.WriteRune(first)
	}
	if last != utf8.RuneError {
		b.WriteRune(last)
	}
	return strings.ToUpper(b.String())
}
