package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jakechorley/unter/pkg/core/model"
)

// Action values carried by response links
const (
	ActionAccept = "accept"
	ActionRefuse = "refuse"
)

// RespondPath is the path response links point at
const RespondPath = "/respond_by_uuid"

// message is one notification rendered for both channels
type message struct {
	Subject string
	Text    string
}

// ResponseURL builds the link a volunteer follows to answer an alert.
// Only the opaque token and the action appear in it.
func ResponseURL(siteURL, token, action string) string {
	return fmt.Sprintf("%s%s?uuid=%s&action=%s",
		strings.TrimRight(siteURL, "/"), RespondPath, url.QueryEscape(token), url.QueryEscape(action))
}

func purpose(et *model.EventType) string {
	if et == nil {
		return "volunteer help"
	}
	if et.Description != "" {
		return et.Description
	}
	return et.Name
}

func when(ev *model.NeedEvent) string {
	return fmt.Sprintf("%s at %s", ev.Date.Format("Mon Jan 2"), model.FormatMinutes(ev.TimeOfNeed))
}

func alertMessage(orgName, siteURL, token string, ev *model.NeedEvent, et *model.EventType) message {
	text := fmt.Sprintf("This is %s. We have a need for %d volunteer(s) on %s. Purpose: %s. Location: %s. "+
		"Can you help? Click link to commit: %s or to ignore: %s",
		orgName, ev.VolunteerCount, when(ev), purpose(et), ev.Location,
		ResponseURL(siteURL, token, ActionAccept), ResponseURL(siteURL, token, ActionRefuse))
	return message{
		Subject: fmt.Sprintf("%s: volunteers needed %s", orgName, when(ev)),
		Text:    text,
	}
}

func confirmationMessage(orgName string, ev *model.NeedEvent, et *model.EventType) message {
	return message{
		Subject: fmt.Sprintf("%s: thank you for committing", orgName),
		Text: fmt.Sprintf("Thank you for volunteering to help with %s on %s. Please go to %s. "+
			"You will receive a reminder one hour prior.", purpose(et), when(ev), ev.Location),
	}
}

func noLongerNeededMessage(orgName string, ev *model.NeedEvent, et *model.EventType) message {
	return message{
		Subject: fmt.Sprintf("%s: no longer needed", orgName),
		Text: fmt.Sprintf("Thank you for responding. Enough volunteers have responded to the need for %s on %s, "+
			"so you are not needed this time.", purpose(et), when(ev)),
	}
}

func coordinatorDecommitMessage(orgName string, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) message {
	phone := vol.Phone
	if phone == "" {
		phone = "no phone on file"
	}
	return message{
		Subject: fmt.Sprintf("%s: volunteer cancelled", orgName),
		Text: fmt.Sprintf("%s cannot serve for %s on %s at %s. Their phone: %s.",
			vol.Name(), purpose(et), when(ev), ev.Location, phone),
	}
}

func cancellationMessage(orgName string, ev *model.NeedEvent, et *model.EventType) message {
	return message{
		Subject: fmt.Sprintf("%s: event cancelled", orgName),
		Text: fmt.Sprintf("The need for %s on %s at %s has been cancelled. Thank you for your willingness to help.",
			purpose(et), when(ev), ev.Location),
	}
}

func reminderMessage(orgName string, ev *model.NeedEvent, et *model.EventType) message {
	return message{
		Subject: fmt.Sprintf("%s: reminder", orgName),
		Text: fmt.Sprintf("Reminder from %s: you are committed to %s today at %s. Please go to %s.",
			orgName, purpose(et), model.FormatMinutes(ev.TimeOfNeed), ev.Location),
	}
}
