package conversation

import (
	"fmt"
	"time"

	"github.com/mlaurent/clinic-voice-agent/internal/scheduling"
)

// Spoken prompts. Everything the caller hears comes from here or from
// the cleaned assistant reply.
const (
	apologyPhrase   = "Je suis désolée, un problème technique est survenu. Pouvez-vous répéter votre demande ?"
	clarifyPhrase   = "Je n'ai pas bien compris la date ou l'heure. Pouvez-vous préciser, par exemple mardi prochain à neuf heures ?"
	silencePhrase   = "Je ne vous entends pas bien. Pouvez-vous répéter ?"
	goodbyePhrase   = "Je n'arrive malheureusement pas à vous entendre. N'hésitez pas à rappeler. Au revoir."
	noMatchPhrase   = "Je ne trouve aucun rendez-vous correspondant dans notre agenda."
	noSlotPhrase    = "Je suis désolée, je ne trouve aucun créneau disponible à proximité. Souhaitez-vous essayer un autre jour ?"
	busyPhrase      = "Ce créneau est déjà pris."
)

var frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frenchMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}

// FrenchDate renders an instant as it should be spoken, e.g.
// "mardi 10 mars à 9 heures 30".
func FrenchDate(t time.Time) string {
	s := fmt.Sprintf("%s %d %s", frenchWeekdays[t.Weekday()], t.Day(), frenchMonths[t.Month()-1])
	if t.Hour() == 0 && t.Minute() == 0 {
		return s
	}
	if t.Minute() == 0 {
		return fmt.Sprintf("%s à %d heures", s, t.Hour())
	}
	return fmt.Sprintf("%s à %d heures %02d", s, t.Hour(), t.Minute())
}

// Greeting is the opening prompt for an answered call.
func Greeting(practiceName string) string {
	return fmt.Sprintf("Bonjour, vous êtes bien au cabinet %s. Comment puis-je vous aider ?", practiceName)
}

// outcomePhrase renders a negotiated outcome as a spoken sentence.
func outcomePhrase(out scheduling.Outcome) string {
	switch out.Kind {
	case scheduling.OutcomeConfirmed:
		return fmt.Sprintf("C'est noté, votre rendez-vous est confirmé le %s.", FrenchDate(out.Start))
	case scheduling.OutcomeProposed:
		return fmt.Sprintf("Ce créneau n'est pas disponible. Je peux vous proposer le %s. Cela vous convient-il ?", FrenchDate(out.Start))
	case scheduling.OutcomeNoAvailability:
		return noSlotPhrase
	case scheduling.OutcomeDeleted:
		return fmt.Sprintf("Votre rendez-vous du %s a bien été annulé.", FrenchDate(out.Start))
	case scheduling.OutcomeNotFound:
		return noMatchPhrase
	case scheduling.OutcomeBusy:
		return busyPhrase
	case scheduling.OutcomeFree:
		return fmt.Sprintf("Le %s est disponible. Voulez-vous que je le réserve ?", FrenchDate(out.Start))
	default:
		return apologyPhrase
	}
}
