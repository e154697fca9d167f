package generate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/geospark-cli/internal/model"
)

const insightsSystemPrompt = `You are a marketing analyst specializing in local business social media presence.
You generate specific, data-driven insights for cold outreach personalization.

Rules:
- Every insight MUST reference specific numbers from the data provided
- Never invent or estimate numbers; only use what's in the data
- Be specific and actionable, not generic marketing advice
- Insights should highlight gaps, opportunities, and patterns
- Each insight should be usable as a hook in a cold email

Return a JSON array of insights.`

const insightsOutputFormat = `
## REQUIRED OUTPUT FORMAT

Return a JSON array. Each insight must have:
- insight_type: one of %s
- insight_title: catchy, short title (under 10 words)
- insight_description: 2-3 sentences with specific numbers from the data
- priority_score: 1-10 (10 = most impactful for cold email)
- supporting_data: object with the specific numbers used

Example:
[
  {
    "insight_type": "posting_pattern",
    "insight_title": "47 Days of Silence on Instagram",
    "insight_description": "Your last Instagram post was 47 days ago, despite averaging 47 likes on before/after content.",
    "priority_score": 9,
    "supporting_data": {"days_since_last_post": 47, "avg_likes": 47}
  }
]

Generate 7-10 insights. Return ONLY the JSON array, no other text.`

// EmailSystemPrompt returns the sequence-writing instructions for a sender.
// Stage 1 uses industry benchmarks for social proof; later stages use case
// studies.
func EmailSystemPrompt(sender string, socialProofStage int) string {
	proof := "Use real case study results."
	if socialProofStage <= 1 {
		proof = "Use INDUSTRY BENCHMARKS (no case studies available yet). Compare their numbers to top performers in their category and city. Project what closing the gap would look like."
	}

	var sb strings.Builder
	sb.WriteString(`You are GeoSpark's cold email writer. You generate hyper-personalized cold email sequences for local business owners.

You are NOT writing marketing emails. You are writing short, direct messages from one person to another, like a knowledgeable friend texting a business owner something useful they noticed.

## CORE RULES (Never Violate)

1. Never open by introducing yourself or GeoSpark. First line is about THEM.
2. Never use filler phrases. Banned: "I wanted to reach out," "I hope this finds you well," "I came across your business," "Just following up," "Touching base."
3. Every email must contain at least 3 specific numbers from their data. Use exact figures.
4. Word limits: Email 1: 75-100 words. Email 2: 75-100 words. Email 3: 100-125 words. Email 4: 50-75 words.
5. Write at an 8th-grade reading level. Short sentences. No jargon.
6. One idea per email.
7. Never lie or fabricate data.

## TONE
- Conversational. Use contractions.
- Use dashes instead of semicolons or colons.
- No exclamation marks in body. One allowed in P.S.
- No emojis.
- First-person singular: "I" not "we."
`)
	fmt.Fprintf(&sb, "- Sign off with just: - %s\n", sender)
	sb.WriteString(`
## SUBJECT LINES
- 3-7 words, lowercase
- Reference something specific to the prospect
- Include a number when possible

## EMAIL STRUCTURE

Email 1 (Day 0), The Insight: question opener using their data, strongest insight with 3+ numbers, soft permission CTA.
Email 2 (Day 3), Different Angle: a DIFFERENT insight type than Email 1, quick actionable tip, soft CTA.
`)
	fmt.Fprintf(&sb, "Email 3 (Day 7), Social Proof: %s Slightly firmer CTA.\n", proof)
	sb.WriteString(`Email 4 (Day 12), Breakup: short, human, no pressure, "closing the loop" framing, P.S. with a genuine compliment from their data.

## WHAT NOT TO DO
- Don't mention pricing, packages, or plans
- Don't mention AI, automation, or software
- Don't promise specific results
- Don't reference scraping; say "I noticed" or "looking at your numbers"
- Don't include links in any email
- Plain text only

## OUTPUT FORMAT
Return ONLY a JSON array of 4 email objects. Each must have:
- email_number (1-4)
- send_delay_days
- subject_line
- body
- insight_type_used
- subject_pattern_used (describe the pattern)
- cta_style_used (describe the CTA approach)
- data_points_used (list of field names)
- data_points_count (integer)
- word_count (integer)
- personalization_pct (estimated 0-100)`)
	return sb.String()
}

// InsightsPrompt builds the user message for insight generation.
func InsightsPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString("Analyze this business and generate 7-10 specific marketing insights.\n\n")
	writeBusiness(&sb, in.Prospect)
	if in.Social != nil {
		writeSocial(&sb, in.Social)
	}
	writeCompetitors(&sb, in.Competitors)

	types := make([]string, 0, len(model.InsightTypes()))
	for _, t := range model.InsightTypes() {
		types = append(types, fmt.Sprintf("%q", t))
	}
	fmt.Fprintf(&sb, insightsOutputFormat, strings.Join(types, ", "))
	return sb.String()
}

// EmailsPrompt builds the user message for sequence generation. The top
// seven insights by priority are included.
func EmailsPrompt(in Input, sender string) string {
	var sb strings.Builder
	sb.WriteString("Generate a 4-email cold outreach sequence for this prospect.\n\n")
	writeBusiness(&sb, in.Prospect)

	switch in.Prospect.ProspectSource {
	case model.SourceFresh:
		fmt.Fprintf(&sb, "\nSOURCE: Fresh source, %s\n", sourceDetail(in.Prospect, "award list or directory"))
		sb.WriteString("IMPORTANT: Reference the source in Email 1 opener.\n")
	case model.SourceEngagement:
		fmt.Fprintf(&sb, "\nSOURCE: Engagement targeting, %s\n", sourceDetail(in.Prospect, "Instagram engagement"))
		sb.WriteString("IMPORTANT: Reference their specific engagement in Email 1 opener.\n")
	}

	if in.Social != nil {
		writeSocial(&sb, in.Social)
	}
	writeCompetitors(&sb, in.Competitors)

	if len(in.Insights) > 0 {
		sorted := append([]model.Insight(nil), in.Insights...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PriorityScore > sorted[j].PriorityScore })
		if len(sorted) > 7 {
			sorted = sorted[:7]
		}
		sb.WriteString("\n## AI-GENERATED INSIGHTS (use top ones for emails)\n")
		for _, ins := range sorted {
			fmt.Fprintf(&sb, "- [%d/10] %s: %s. %s\n", ins.PriorityScore, ins.InsightType, ins.Title, ins.Description)
		}
	}

	fmt.Fprintf(&sb, "\nSender name: %s\n", sender)
	sb.WriteString("\nGenerate the 4-email sequence. Return ONLY the JSON array.")
	return sb.String()
}

func sourceDetail(p *model.Prospect, fallback string) string {
	if p.SourceDetails == nil {
		return fallback
	}
	if d, ok := p.SourceDetails["detail"].(string); ok && d != "" {
		return d
	}
	if c, ok := p.SourceDetails["engagement_creator"].(string); ok && c != "" {
		detail := "commented on @" + c
		if comment, ok := p.SourceDetails["engagement_comment"].(string); ok && comment != "" {
			detail += fmt.Sprintf(": %q", comment)
		}
		return detail
	}
	return fallback
}

func orNA[T comparable](v T) string {
	var zero T
	if v == zero {
		return "N/A"
	}
	return fmt.Sprint(v)
}

func writeBusiness(sb *strings.Builder, p *model.Prospect) {
	contact := p.OwnerName
	if contact == "" {
		contact = p.ContactName
	}
	sb.WriteString("## BUSINESS DATA\n")
	fmt.Fprintf(sb, "Business: %s\n", p.BusinessName)
	fmt.Fprintf(sb, "Owner/Contact Name: %s\n", orNA(contact))
	fmt.Fprintf(sb, "Category: %s\n", orNA(p.Category))
	fmt.Fprintf(sb, "City: %s, %s\n", p.City, p.State)
	fmt.Fprintf(sb, "Google Rating: %s\n", orNA(p.GoogleRating))
	fmt.Fprintf(sb, "Google Reviews: %s\n", orNA(p.GoogleReviewsCount))
	fmt.Fprintf(sb, "Website: %s\n", orNA(p.Website))
}

func writeSocial(sb *strings.Builder, s *model.SocialProfile) {
	pp := s.PostingPatterns()
	sb.WriteString("\n## INSTAGRAM DATA\n")
	fmt.Fprintf(sb, "Username: @%s\n", s.Username)
	fmt.Fprintf(sb, "Followers: %d\n", s.Followers)
	fmt.Fprintf(sb, "Following: %d\n", s.Following)
	fmt.Fprintf(sb, "Total Posts: %d\n", s.PostsCount)
	fmt.Fprintf(sb, "Engagement Rate: %.2f%%\n", s.EngagementRate)
	fmt.Fprintf(sb, "Posts Last 30 Days: %d\n", s.PostsLast30Days)
	fmt.Fprintf(sb, "Posting Frequency: %.1f posts/month\n", s.PostingFrequency)
	if s.LastPostDate != nil {
		fmt.Fprintf(sb, "Last Post: %s\n", s.LastPostDate.Format("2006-01-02"))
		fmt.Fprintf(sb, "Days Since Last Post: %d\n", pp.DaysSinceLastPost)
	}
	fmt.Fprintf(sb, "Max Posting Gap: %d days\n", pp.MaxGapDays)
	fmt.Fprintf(sb, "Is Business Account: %t\n", s.IsBusiness)
	if s.Bio != "" {
		fmt.Fprintf(sb, "Bio: %s\n", s.Bio)
	}

	if len(s.ContentBreakdown) > 0 {
		sb.WriteString("\n## CONTENT BREAKDOWN\n")
		kinds := make([]string, 0, len(s.ContentBreakdown))
		for k := range s.ContentBreakdown {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			share := s.ContentBreakdown[k]
			fmt.Fprintf(sb, "- %s: %d posts (%.1f%%)\n", k, share.Count, share.Pct)
		}
	}
	if len(s.ToolsDetected) > 0 {
		fmt.Fprintf(sb, "\nTools Detected: %s\n", strings.Join(s.ToolsDetected, ", "))
	}
	if eng := s.EngagementDetails(); eng.BestPostType != "" {
		fmt.Fprintf(sb, "\nBest Post Type: %s (%.2f%% engagement)\n", eng.BestPostType, eng.BestEngagement)
		fmt.Fprintf(sb, "Worst Post Type: %s (%.2f%% engagement)\n", eng.WorstPostType, eng.WorstEngagement)
		fmt.Fprintf(sb, "Avg Likes: %.1f\n", eng.AvgLikes)
		fmt.Fprintf(sb, "Avg Comments: %.1f\n", eng.AvgComments)
	}
}

func writeCompetitors(sb *strings.Builder, comps []model.Competitor) {
	if len(comps) == 0 {
		return
	}
	sb.WriteString("\n## COMPETITOR DATA\n")
	for _, c := range comps {
		fmt.Fprintf(sb, "- %s: IG @%s, %d followers, %.1f posts/month, %.2f%% engagement",
			c.CompetitorName, orNA(c.CompetitorInstagram), c.Followers, c.PostsPerMonth, c.EngagementRate)
		if c.FollowerGap != nil {
			fmt.Fprintf(sb, ", follower gap %d", *c.FollowerGap)
		}
		if c.PostingGap != nil {
			fmt.Fprintf(sb, ", posting gap %.1f/month", *c.PostingGap)
		}
		if c.EngagementGap != nil {
			fmt.Fprintf(sb, ", engagement gap %.3f%%", *c.EngagementGap)
		}
		sb.WriteString("\n")
	}
}
