package transform

// Markup anchors of the platform's profile, timeline and follower pages.
// Layout changes on the site are expected to land here first.
const (
	// TimelineReady appears once the profile timeline has hydrated.
	TimelineReady = `section[role="region"]`

	selUserName     = `div[data-testid="UserName"]`
	selVerified     = `svg[data-testid="icon-verified"]`
	selBio          = `[data-testid="UserDescription"]`
	selJoinDate     = `[data-testid="UserJoinDate"]`
	selHeaderItems  = `[data-testid="UserProfileHeader_Items"]`
	selUserURL      = `[data-testid="UserUrl"]`
	selRegion       = `section[role="region"]`
	selArticle      = `article[data-testid="tweet"]`
	selSocialCtx    = `span[data-testid="socialContext"]`
	selPostUserName = `div[data-testid="User-Name"]`
	selStat         = `span[data-testid="app-text-transition-container"]`
	selPostText     = `div[data-testid="tweetText"]`
	selUserCell     = `[data-testid="UserCell"]`
	selCellLink     = `a[role="link"][aria-hidden="true"]`
)

func followingHref(handle string) string {
	return `a[href="/` + handle + `/following"]`
}

// The verified_followers anchor replaced /followers on current layouts.
func followersHrefs(handle string) []string {
	return []string{
		`a[href="/` + handle + `/verified_followers"]`,
		`a[href="/` + handle + `/followers"]`,
	}
}
