package training

const (
	ScenarioPassword          = "password"
	ScenarioPhishing          = "phishing"
	ScenarioSocialEngineering = "social_engineering"
)

const feedbackRules = `## CRITICAL RESPONSE FORMAT
YOU MUST:
1. For each user response, provide informative feedback on their answer to the CURRENT question only (1-2 sentences)
2. Then ask the next question in sequence, with its number (e.g. "Question 2/5:")
3. NEVER repeat a question
4. NEVER use lettered points (a), b), etc.) in your feedback - use plain text only
5. NEVER skip ahead - always give feedback for the current question number
`

func builtinScenarios() []*Scenario {
	return []*Scenario{passwordScenario(), phishingScenario(), socialEngineeringScenario()}
}

func passwordScenario() *Scenario {
	return &Scenario{
		ID:    ScenarioPassword,
		Title: "Password Security Training",
		Intro: "This is a password security training exercise. I will guide you through 5 questions about creating and managing secure passwords.",
		SystemPrompt: `## PASSWORD SECURITY TRAINING PROTOCOL
You are a Cybersecurity Training Assistant delivering an interactive 5-question password security training.
Passwords the user enters are shown to you masked; the strength evaluation in the system notes describes the real password.
Never ask the user to reveal a password in plain text.

` + feedbackRules,
		Rubric: `## PASSWORD SECURITY ASSESSMENT
Evaluate the user's password knowledge based on their 5 responses. Weigh the strength of the final password most heavily,
then the multiple-choice answers and the explanation about password reuse.

Respond with ONLY a JSON object of this shape:
{"final_score": <0-100>, "assessment": "<2-3 sentences>", "strengths": ["..."], "weaknesses": ["..."], "improvement_suggestions": ["..."]}`,
		Questions: []Question{
			{
				Text:   "Enter a new password for your company's network, and I will evaluate its security.",
				Secret: true,
			},
			{
				Text: "Which of these is the most secure way to create a password?",
				Options: []string{
					`Using a single dictionary word (e.g., "sunshine")`,
					`Using a mix of uppercase, lowercase, numbers, and special characters (e.g., "P@s$w0rd!2023")`,
					"Using a birth date or pet's name",
					"Reusing an old password",
				},
				Answer: "B",
			},
			{
				Text: "Why should you never use the same password for multiple accounts?",
				Keywords: [][]string{
					{"breach", "leak", "compromise", "hack", "stolen"},
					{"other account", "all account", "every account", "multiple account", "everything"},
					{"credential stuffing", "attacker", "reuse"},
				},
			},
			{
				Text:    "Which of these passwords is the most secure?",
				Options: []string{"Password123!", "Tr0ub4dor&3", "S3cureP@ssw0rd!", "company2024"},
				Answer:  "C",
			},
			{
				Text:   "Now that you have completed this training, create a new secure password for your company's network based on what you have learned.",
				Secret: true,
			},
		},
		Fallback: FallbackPassword,
	}
}

func phishingScenario() *Scenario {
	return &Scenario{
		ID:    ScenarioPhishing,
		Title: "Phishing Awareness Training",
		Intro: "This is a phishing awareness exercise. I will ask you 5 questions about phishing detection.",
		Material: `From: security-alerts@globalbank-verification.com
To: employee@company.com
Subject: URGENT: Your GlobalBank Account Has Been Compromised

Dear Valued Customer,

We have detected unusual activity on your GlobalBank account that requires immediate attention. Our security systems have flagged multiple suspicious login attempts from an unrecognized location.

To prevent unauthorized transactions, your account access has been temporarily limited. You must verify your identity within 24 hours to avoid account suspension.

Verify Your Account Now: https://globelbank-security-portal.com/verify

Please note:
- This process takes only 2 minutes
- You will need your account credentials and SSN
- Failure to verify will result in immediate account suspension

John Wilson
GlobalBank Customer Protection Team`,
		SystemPrompt: `## PHISHING AWARENESS TRAINING PROTOCOL
You are a Cybersecurity Training Assistant delivering an interactive 5-question phishing awareness training.

` + feedbackRules,
		Rubric: `## SCIENTIFIC PHISHING AWARENESS ASSESSMENT
Conduct a rigorous and scientific evaluation of the user's phishing awareness based on their 5 responses.
When calculating the final score consider threat recognition, technical knowledge, response protocols,
preventative measures and critical thinking, but do NOT include separate scores for each in your output.

You MUST use EXACTLY this format:

Your final score is: [X]/100.

Scientific Assessment: [3-4 sentences providing an evidence-based evaluation of their phishing awareness]

Strengths:
- [strength]

Weaknesses:
- [weakness]

Suggestions:
- [specific recommendation]`,
		Questions: []Question{
			{
				Text: "Looking at the sample email provided, what are three specific red flags that indicate this is a phishing attempt?",
				Keywords: [][]string{
					{"urgent", "urgency", "24 hour", "deadline", "immediate"},
					{"domain", "sender", "address", "globelbank", "misspel", "spelling"},
					{"link", "url"},
					{"ssn", "credential", "social security", "personal information"},
					{"suspension", "threat", "generic", "valued customer"},
				},
			},
			{
				Text: "Which of these URLs is most suspicious and why?",
				Options: []string{
					"https://company-payroll.com/login",
					"https://globelbank-security-portal.com/verify",
					"https://accounts.google.com/signin",
					"https://yourcompany.com/reset-password",
				},
				Answer: "B",
			},
			{
				Text: "If you accidentally clicked on the phishing link in the email, what immediate steps should you take to minimize potential damage?",
				Keywords: [][]string{
					{"disconnect", "offline", "network", "wifi"},
					{"password", "credential"},
					{"report", "security team", "helpdesk", "help desk", "it department"},
					{"scan", "antivirus", "malware"},
					{"monitor", "bank", "account activity"},
				},
			},
			{
				Text: "The email creates a false sense of urgency by mentioning a 24-hour deadline. Why is creating urgency a common tactic in phishing attacks?",
				Keywords: [][]string{
					{"panic", "pressure", "rush", "fear", "stress"},
					{"think", "verify", "critical", "scrutin", "check"},
					{"time", "quick", "fast", "impulsive"},
				},
			},
			{
				Text: "What specific security measures can organizations implement to reduce the risk of successful phishing attacks against their employees?",
				Keywords: [][]string{
					{"training", "awareness", "educat"},
					{"filter", "spam", "gateway"},
					{"mfa", "multi-factor", "2fa", "two-factor"},
					{"simulat", "test"},
					{"dmarc", "spf", "dkim", "report button", "reporting"},
				},
			},
		},
		Fallback: FallbackKeywords,
	}
}

func socialEngineeringScenario() *Scenario {
	return &Scenario{
		ID:    ScenarioSocialEngineering,
		Title: "Social Engineering Awareness Training",
		Intro: "This is a social engineering awareness exercise. I will ask you 5 questions about recognizing and responding to social engineering attempts.",
		Material: `Office Building Visitor Scenario

You work at a tech company called SecureTech Solutions, handling sensitive customer data and product information. You're at your desk when an unfamiliar person approaches you:

Visitor: Hi there! I'm David from IT support. We've detected some unusual activity on the network affecting this floor. I need to check your workstation quickly. It'll just take a minute - I need to install a security patch before the vulnerability spreads.

You: Oh, I didn't get any notification about this.

Visitor: Yeah, we're just going around in person - it was faster than sending emails to everyone. It's pretty urgent. Several machines are already affected. I just need your login credentials to run the patch without triggering the security alerts.

You: Hmm, I see. You need my credentials?

Visitor: Yes, or you can step away and I'll type them in if you're more comfortable with that. I just need to run the patch as an admin user. The CTO authorized this - you can call him if you want, but he's in meetings all day. Several people on this floor have already done it.

The visitor is wearing casual clothes with no visible company ID badge. He has a laptop and seems to be in a hurry.`,
		SystemPrompt: `## SOCIAL ENGINEERING AWARENESS TRAINING PROTOCOL
You are a Cybersecurity Training Assistant delivering an interactive 5-question social engineering awareness training.

` + feedbackRules + `
## FEEDBACK GUIDELINES
Question 1: red flags include no visible ID badge, requesting login credentials, urgency, unverified authority (CTO approval) and social proof.
Question 2: the correct answer is B. Explain briefly why verification is crucial.
Question 3: the principle is "social proof" - the tendency to follow what others are doing.
Question 4: good responses include reporting the incident immediately, changing passwords and following incident response protocols.
Question 5: look for visitor management, ID verification, security awareness training and clear protocols for system maintenance.
`,
		TurnInstruction: "IMPORTANT: The user is currently answering Question {current}/{total}. Provide feedback ONLY for Question {current}/{total} and then ask Question {next}/{total}.",
		Rubric: `## SOCIAL ENGINEERING ASSESSMENT
Conduct a rigorous evaluation of the user's social engineering awareness based on their 5 responses.
Weigh threat detection (25%), response knowledge (25%), principle recognition (15%), incident handling (15%)
and preventative measures (20%), but do NOT include separate scores for each in your output.

You MUST use EXACTLY this format:

Your final score is: [X]/100.

Security Assessment: [3-4 sentences providing an evidence-based evaluation of their social engineering awareness]

Strengths:
- [strength]

Areas for Improvement:
- [weakness]

Recommendations:
- [specific recommendation]`,
		Questions: []Question{
			{
				Text: "Based on the scenario described, what are three red flags that suggest this might be a social engineering attempt?",
				Keywords: [][]string{
					{"badge", "identification", "id card", "no id"},
					{"credential", "password", "login"},
					{"urgen", "hurry", "pressure", "rush"},
					{"cto", "authority", "authoriz"},
					{"notification", "unannounced", "in person", "no email", "already done"},
				},
			},
			{
				Text: "What is the most appropriate first response to this situation?",
				Options: []string{
					"Give the visitor your credentials since the CTO approved it",
					"Ask to see identification and verify with IT department",
					"Step away and let the visitor use your computer",
					"Tell the visitor to come back later when you're less busy",
				},
				Answer: "B",
			},
			{
				Text: "Which principle of social engineering is the visitor using when they say 'Several people on this floor have already done it'?",
				Keywords: [][]string{
					{"social proof", "consensus", "conformity", "herd", "bandwagon"},
				},
			},
			{
				Text: "What should you do if you've already shared sensitive information with a suspected social engineer?",
				Keywords: [][]string{
					{"report", "security team", "it department", "helpdesk"},
					{"change", "reset", "password"},
					{"monitor", "log", "account activity"},
					{"incident", "document", "write down", "record"},
				},
			},
			{
				Text: "What security protocols should your organization implement to prevent this type of social engineering attack?",
				Keywords: [][]string{
					{"verif", "identity", "call back", "callback"},
					{"badge", "escort", "visitor", "sign in"},
					{"never share", "credential", "password policy"},
					{"training", "awareness", "educat"},
					{"procedure", "policy", "protocol", "change management", "ticket"},
				},
			},
		},
		Fallback: FallbackKeywords,
	}
}
