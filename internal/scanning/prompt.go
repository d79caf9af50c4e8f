package scanning

// PromptVersion identifies contactScanPrompt. Any edit to the prompt text is a
// behavior change and must bump this value.
const PromptVersion = "contacts-v1"

// contactScanPrompt is the shared instruction sent to every inference backend
const contactScanPrompt = `Extract the customer contact information from this image.

Return a JSON array in exactly this format:
[
  {"phone": "010-1234-5678", "name": "Hong Gildong", "note": ""},
  {"phone": "02-123-4567", "name": "Kim Cheolsu", "note": ""}
]

Rules:
1. The answer is a JSON array of objects.
2. Every object has exactly three fields in this order: phone, name, note.
3. "note" is always the empty string ("").
4. Write phone numbers with hyphen separators (010-1234-5678).
5. Only include rows that contain a phone number.
6. Extract only people's names (Korean or English). If a name is not clearly readable, use the empty string.
7. Do not include table headers as rows.
8. Return only the JSON. No explanation before or after it.`
