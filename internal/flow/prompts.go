package flow

// WelcomeMessage greets a new session.
const WelcomeMessage = "Hello! I'm the Cyber AI Assistant, your 24/7 cybersecurity support system."

// praiseMessages are rotated after each accepted interview answer. The
// name field gets a personalized greeting instead.
var praiseMessages = []string{
	"Great, thank you!",
	"Excellent.",
	"Got it.",
	"Perfect, thanks.",
	"Nice.",
}

// chatSystemPrompt frames free-form conversation outside any guided mode.
const chatSystemPrompt = `You are a helpful cybersecurity incident assistant. Answer questions about cyber safety, incident reporting and this service. Keep answers short and practical. If the user wants to file a complaint, analyze a scanner report, generate a response playbook or check a complaint status, tell them to use the matching quick action or command.`

const evidencePrompt = "Now please upload any evidence files (images/documents). When finished, type 'done'."

const evidenceReminder = "Please upload any evidence using the attachment button. When finished, type 'done'."

const evidenceReceived = "Evidence received! Upload more files or type 'done' to submit."

// riskAnalysisSystemPrompt is the fixed one-shot instruction for the
// risk-analysis relay. The model must answer with a single JSON object.
const riskAnalysisSystemPrompt = `You are a cybersecurity forensics and risk analysis engine.

Input will be a JSON report from file scanners, malware scanners, forensic tools or security modules.

Your job:
- Detect if there is any cyber threat or risky indicator.
- Identify the attack type (examples: malware, steganography, image tampering, unauthorized access, phishing, data exfiltration, benign/no threat).
- Generate a RISK SCORE between 0 and 100.
- Derive a RISK CATEGORY from the score:
  - 0-19    -> "Informational"
  - 20-39   -> "Low"
  - 40-59   -> "Medium"
  - 60-79   -> "High"
  - 80-100  -> "Critical"
- Set PRIORITY: "LOW", "MEDIUM", "HIGH", or "CRITICAL".
- Decide if the user should be alerted (true / false).
- Provide a short bullet-point summary of findings.

Respond ONLY in valid JSON using exactly this schema:

{
  "risk_score": number,
  "risk_category": "Informational" | "Low" | "Medium" | "High" | "Critical",
  "attack_type": string,
  "priority": "LOW" | "MEDIUM" | "HIGH" | "CRITICAL",
  "should_alert_user": boolean,
  "summary": [string, ...]
}

Never add text outside JSON.`

// riskRelayPrefix leads the user turn that carries the scanner payload.
const riskRelayPrefix = "Analyze this security report and respond ONLY with valid JSON:\n\n"

// playbookSystemPrompt is the fixed one-shot instruction for the playbook
// relay. The model must answer with prose, not JSON.
const playbookSystemPrompt = `You are a CERT (Computer Emergency Response Team) incident response expert.

Input: A JSON object that ALREADY contains:
- risk_score
- risk_category
- priority
- attack_type
- summary

Your task:
Generate a professional CERT incident response PLAYBOOK for this incident.

Requirements:
- The playbook must be understandable by non-technical users AND useful for security teams.
- Use clear headings and bullet points.
- Do NOT return JSON.
- Do NOT explain what you are doing.
- Only output the playbook.

Format:

CERT Incident Response Playbook - {attack_type}
Priority: {priority} | Risk: {risk_category} ({risk_score}/100)

Executive Summary (non-technical)
- Simple explanation of what happened and impact

Affected Areas
- Who or what might be impacted

1. Detection & Validation
- Steps to confirm the incident
- Logs / evidence to review

2. Containment
- Immediate actions to limit damage
- Short-term and long-term containment ideas

3. Forensic Investigation
- What to collect and analyze
- Questions to answer

4. Eradication & Remediation
- How to remove the threat
- How to close the hole used by the attacker

5. Recovery & Validation
- Steps to safely restore systems/users
- Checks before saying "incident is over"

6. Reporting / Legal / Compliance
- Who should be informed
- Possible reporting or documentation needs

7. Lessons Learned & Prevention
- How to avoid similar incidents in future
- Training / policy / control improvements

Use simple language where possible, but keep it professional.`
