package service

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	parisOnce sync.Once
	parisLoc  *time.Location
)

func paris() *time.Location {
	parisOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/Paris")
		if err != nil {
			loc = time.FixedZone("CET", 3600)
		}
		parisLoc = loc
	})
	return parisLoc
}

// ParseParisTime interpreta "YYYY-MM-DD HH:MM" en horario de París y
// devuelve epoch seconds.
func ParseParisTime(s string) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(s), paris())
	if err != nil {
		return 0, fmt.Errorf("fecha inválida (esperado YYYY-MM-DD HH:MM): %w", err)
	}
	return t.Unix(), nil
}

// FormatParisShort: "02/01 15:04", para nombres de thread.
func FormatParisShort(epoch int64) string {
	return time.Unix(epoch, 0).In(paris()).Format("02/01 15:04")
}
