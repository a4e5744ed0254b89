package leads

const extractionPrompt = `You are an expert lead extraction assistant for Fertility Point, a fertility clinic.
Your task is to analyze the following WhatsApp chat history and extract lead information.

Fields to extract:
1. name: The user's full name.
2. phoneNumber: The user's phone number (use %s if not explicitly mentioned in chat).
3. hospitalBranch: One of "Upper Hill, Nairobi", "Parklands, Nairobi", or "United Mall, Kisumu".
4. appointmentDate: The preferred date for the appointment (YYYY-MM-DD format if possible).

Chat History:
%s

Return the data as a JSON object with exactly those four keys. If a field is not found, use null.
Example:
{
  "name": "John Doe",
  "phoneNumber": "254712345678",
  "hospitalBranch": "Upper Hill, Nairobi",
  "appointmentDate": "2026-03-12"
}`
