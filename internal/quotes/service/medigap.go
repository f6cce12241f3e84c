package service

import "time"

// medigapAgeAtLeast is the age at which Medicare eligibility normally begins.
const medigapAgeAtLeast = 65

// RateAge returns the age a carrier quotes for a policy starting in the
// effective month: the age reached at any point during that month. A birthday
// on the 1st counts as falling in the preceding month.
func RateAge(dob, effective time.Time) int {
	year, month := adjustedBirthMonth(dob)

	age := effective.Year() - year
	if int(effective.Month()) < month {
		age--
	}
	return age
}

// StartDate returns the first month Medigap coverage can start for someone
// born on dob: the month of their 65th birthday (shifted back one month for
// a birthday on the 1st), but never earlier than the month after now.
func StartDate(dob, now time.Time) time.Time {
	earliest := firstOfMonth(now).AddDate(0, 1, 0)

	if ageOn(dob, now) >= medigapAgeAtLeast {
		return earliest
	}

	year, month := adjustedBirthMonth(dob)
	candidate := time.Date(year+medigapAgeAtLeast, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	if candidate.Before(earliest) {
		return earliest
	}
	return candidate
}

func adjustedBirthMonth(dob time.Time) (year, month int) {
	year, month = dob.Year(), int(dob.Month())
	if dob.Day() == 1 {
		month--
		if month == 0 {
			month = 12
			year--
		}
	}
	return year, month
}

func ageOn(dob, on time.Time) int {
	age := on.Year() - dob.Year()
	birthday := time.Date(on.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	if firstOfDay(on).Before(birthday) {
		age--
	}
	return age
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func firstOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
