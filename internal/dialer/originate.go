package dialer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/telephony"
)

// defaultCallerName is used when the campaign caller-ID carries no name part.
const defaultCallerName = "Campaign"

var (
	nonNumberChars = regexp.MustCompile(`[^0-9+]`)
	angleBracketed = regexp.MustCompile(`<.*?>`)
)

// newCallID builds the campaign-run-scoped call identifier. The dialplan
// hook reports back under the same id, so it must stay unique per store.
func newCallID(campaignID, contactID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("simpledialer_%s_%s_%d", campaignID, contactID, at.Unix())
}

// parseCallerID splits a configured caller-ID string such as
// `"Acme Alerts" <+15551234567>` into its number and name parts.
func parseCallerID(callerID string) (num, name string) {
	num = nonNumberChars.ReplaceAllString(callerID, "")
	name = angleBracketed.ReplaceAllString(callerID, "")
	name = strings.ReplaceAll(name, `"`, "")
	if num != "" {
		name = strings.ReplaceAll(name, num, "")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultCallerName
	}
	return num, name
}

// buildOriginate assembles the asynchronous origination request for one
// contact. The call routes through a Local channel so the switch applies
// its own outbound trunk rules, and the __-prefixed variables are inherited
// into the spawned channel for the dialplan hook.
func (d *Dialer) buildOriginate(campaign *domain.Campaign, contact *domain.Contact, callID string) telephony.OriginateRequest {
	dialable := strings.TrimPrefix(contact.PhoneNumber, "+")
	channel := fmt.Sprintf("Local/%s@%s", dialable, d.telephonyCfg.LocalContext)
	cidNum, cidName := parseCallerID(campaign.CallerID)

	return telephony.OriginateRequest{
		Channel:      channel,
		Context:      d.telephonyCfg.DialContext,
		Exten:        "s",
		Priority:     1,
		Timeout:      d.telephonyCfg.OriginateTimeout,
		CallerIDNum:  cidNum,
		CallerIDName: cidName,
		Variables: map[string]string{
			"CALL_ID":             callID,
			"AUDIO_FILE":          campaign.AudioFile,
			"CAMPAIGN_ID":         campaign.ID.String(),
			"CONTACT_ID":          contact.ID.String(),
			"__CAMPAIGN_CID_NUM":  cidNum,
			"__CAMPAIGN_CID_NAME": cidName,
		},
		Async: true,
	}
}
